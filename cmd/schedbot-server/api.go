package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"schedbot/internal/conversation"
	"schedbot/internal/dialog"
	"schedbot/internal/domain"
	"schedbot/internal/intent"
)

const maxBodyBytes = 64 << 10

type decider interface {
	Decide(ctx context.Context, req domain.DecideRequest) (domain.DecideResult, error)
}

type decisionLister interface {
	ListDecisions(ctx context.Context, userID string, limit int) ([]domain.DecisionRecord, error)
}

type api struct {
	decider       decider
	conversations *conversation.Service
	registry      *intent.Registry
	catalogPath   string
	decisions     decisionLister
	logger        *slog.Logger
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.health)
	r.Post("/v1/decide", a.decide)
	r.Post("/v1/transition", a.transition)
	r.Post("/v1/catalog/reload", a.reloadCatalog)

	r.Route("/v1/conversations/{user}", func(r chi.Router) {
		r.Get("/", a.getConversation)
		r.Post("/start", a.startConversation)
		r.Post("/messages", a.postMessage)
		r.Post("/events", a.postEvent)
		r.Get("/decisions", a.listDecisions)
	})
	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	snap, ok := a.registry.Current()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "no intent catalog loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"catalog_version": snap.Version,
		"categories":      snap.Classifier.Labels(),
	})
}

func (a *api) decide(w http.ResponseWriter, req *http.Request) {
	var body domain.DecideRequest
	if err := decodeJSONBody(req, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res, err := a.decider.Decide(req.Context(), body)
	a.writeDecision(w, res, err)
}

func (a *api) transition(w http.ResponseWriter, req *http.Request) {
	var body struct {
		State string `json:"state"`
		Input string `json:"input"`
	}
	if err := decodeJSONBody(req, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	state := domain.StateReady
	if strings.TrimSpace(body.State) != "" {
		parsed, err := domain.ParseState(body.State)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		state = parsed
	}
	writeJSON(w, http.StatusOK, dialog.Transition(state, domain.Input(body.Input)))
}

func (a *api) reloadCatalog(w http.ResponseWriter, _ *http.Request) {
	c, err := intent.LoadCatalog(a.catalogPath)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	loaded, err := a.registry.Load(c)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	a.logger.Info("catalog reload", "path", a.catalogPath, "version", c.Version, "loaded", loaded)
	writeJSON(w, http.StatusOK, map[string]any{"loaded": loaded, "version": c.Version})
}

func (a *api) getConversation(w http.ResponseWriter, req *http.Request) {
	conv, err := a.conversations.Get(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (a *api) startConversation(w http.ResponseWriter, req *http.Request) {
	conv, reply, err := a.conversations.Start(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "response": reply})
}

func (a *api) postMessage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSONBody(req, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res, err := a.conversations.HandleMessage(req.Context(), chi.URLParam(req, "user"), body.Text)
	a.writeDecision(w, res, err)
}

func (a *api) postEvent(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Input string `json:"input"`
	}
	if err := decodeJSONBody(req, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	tr, reply, err := a.conversations.HandleEvent(req.Context(), chi.URLParam(req, "user"), domain.NormalizeInput(body.Input))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transition": tr, "response": reply})
}

func (a *api) listDecisions(w http.ResponseWriter, req *http.Request) {
	if a.decisions == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "decision log is not enabled"})
		return
	}
	limit := 20
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be in 1..500"})
			return
		}
		limit = n
	}
	recs, err := a.decisions.ListDecisions(req.Context(), chi.URLParam(req, "user"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": recs})
}

// writeDecision answers 502 with the failure reply when a collaborator
// failed, so callers still have something to show the user.
func (a *api) writeDecision(w http.ResponseWriter, res domain.DecideResult, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrCollaboratorFailure):
		a.logger.Error("decide failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": res})
	default:
		a.writeError(w, err)
	}
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrConversationNotFound), errors.Is(err, domain.ErrPollNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConfiguration):
		status = http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid json: multiple JSON values")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
