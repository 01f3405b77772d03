package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"schedbot/internal/conversation"
	"schedbot/internal/domain"
	"schedbot/internal/intent"
	"schedbot/internal/orchestrator"
)

type fakeDecider struct {
	fail bool
}

func (f fakeDecider) Decide(_ context.Context, req domain.DecideRequest) (domain.DecideResult, error) {
	state := domain.ConversationState(req.State)
	if f.fail {
		return domain.DecideResult{
			Text:      req.Text,
			State:     state,
			NextState: state,
			Response:  &domain.ResponseDecision{Text: orchestrator.FailureReply, Provenance: domain.ProvenanceFailed},
		}, errors.Join(domain.ErrCollaboratorFailure, errors.New("qa down"))
	}
	if req.State == "dancing" {
		return domain.DecideResult{}, errors.New("unknown conversation state")
	}
	return domain.DecideResult{
		Text:      req.Text,
		Question:  req.Text,
		Intent:    domain.IntentAvailabilityRequest,
		Action:    domain.ActionOpenPoll,
		Handled:   true,
		State:     state,
		NextState: domain.StatePolling,
		Response: &domain.ResponseDecision{
			Text:       "How about Friday at 9? Let me check with the team.",
			Provenance: domain.ProvenanceAffirmative,
			Confidence: 1,
			Poll:       &domain.Poll{Date: "Friday", Time: "9"},
		},
	}, nil
}

func newTestAPI(t *testing.T, d fakeDecider) *api {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := intent.NewRegistry()
	_, err := registry.Load(intent.Catalog{Version: 1, Categories: []intent.Category{
		{Name: domain.IntentGreeting, Prototypes: [][]float32{{1, 0}}},
		{Name: domain.IntentSuggestion, Prototypes: [][]float32{{0, 1}}},
	}})
	require.NoError(t, err)

	return &api{
		decider:       d,
		conversations: conversation.New(conversation.NewMemoryStore(), nil, nil, d, logger),
		registry:      registry,
		catalogPath:   filepath.Join(t.TempDir(), "catalog.yaml"),
		logger:        logger,
	}
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t, fakeDecider{}).routes()
	code, body := call(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["catalog_version"])
	require.Equal(t, []any{"greeting", "suggestion"}, body["categories"])
}

func TestDecide(t *testing.T) {
	h := newTestAPI(t, fakeDecider{}).routes()

	code, body := call(t, h, http.MethodPost, "/v1/decide", `{"text":"When are you free?","state":"ready"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "open_poll", body["action"])
	require.Equal(t, "polling", body["next_state"])

	code, _ = call(t, h, http.MethodPost, "/v1/decide", `{"text":"hi","mood":"happy"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodPost, "/v1/decide", `{"text":"hi","state":"dancing"}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestDecideCollaboratorFailureIsBadGateway(t *testing.T) {
	h := newTestAPI(t, fakeDecider{fail: true}).routes()

	code, body := call(t, h, http.MethodPost, "/v1/decide", `{"text":"Is Friday ok?","state":"initiated"}`)
	require.Equal(t, http.StatusBadGateway, code)
	result := body["result"].(map[string]any)
	require.Equal(t, "initiated", result["next_state"])
	require.Equal(t, orchestrator.FailureReply, result["response"].(map[string]any)["text"])
}

func TestTransition(t *testing.T) {
	h := newTestAPI(t, fakeDecider{}).routes()

	code, body := call(t, h, http.MethodPost, "/v1/transition", `{"state":"polling","input":"Passes"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "awaiting", body["next_state"])
	require.Equal(t, "request_confirmation", body["action"])
	require.Equal(t, true, body["handled"])

	code, body = call(t, h, http.MethodPost, "/v1/transition", `{"state":"scheduled","input":"greeting"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "scheduled", body["next_state"])
	require.Equal(t, false, body["handled"])
}

func TestConversationEndpoints(t *testing.T) {
	h := newTestAPI(t, fakeDecider{}).routes()

	code, _ := call(t, h, http.MethodGet, "/v1/conversations/u1/", "")
	require.Equal(t, http.StatusNotFound, code)

	code, body := call(t, h, http.MethodPost, "/v1/conversations/u1/start", "")
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, orchestrator.Greeting, body["response"].(map[string]any)["text"])

	code, body = call(t, h, http.MethodPost, "/v1/conversations/u1/messages", `{"text":"When are you free?"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "polling", body["next_state"])

	code, body = call(t, h, http.MethodPost, "/v1/conversations/u1/events", `{"input":"passes"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "awaiting", body["transition"].(map[string]any)["next_state"])
	require.Equal(t, "The team can make Friday at 9. Can you confirm?", body["response"].(map[string]any)["text"])

	code, body = call(t, h, http.MethodGet, "/v1/conversations/u1/", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "awaiting", body["state"])

	code, _ = call(t, h, http.MethodGet, "/v1/conversations/u1/decisions", "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestReloadCatalog(t *testing.T) {
	a := newTestAPI(t, fakeDecider{})
	h := a.routes()

	code, _ := call(t, h, http.MethodPost, "/v1/catalog/reload", "")
	require.Equal(t, http.StatusBadRequest, code)

	raw := "version: 2\ncategories:\n  - name: greeting\n    prototypes: [[1, 0, 0]]\n  - name: confirmation\n    prototypes: [[0, 0, 1]]\n"
	require.NoError(t, os.WriteFile(a.catalogPath, []byte(raw), 0o644))

	code, body := call(t, h, http.MethodPost, "/v1/catalog/reload", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["loaded"])

	snap, ok := a.registry.Current()
	require.True(t, ok)
	require.Equal(t, int64(2), snap.Version)
	require.Equal(t, 3, snap.Classifier.Dimensions())

	require.NoError(t, os.WriteFile(a.catalogPath, []byte("version: 3\ncategories: []\n"), 0o644))
	code, _ = call(t, h, http.MethodPost, "/v1/catalog/reload", "")
	require.Equal(t, http.StatusBadRequest, code)

	snap, ok = a.registry.Current()
	require.True(t, ok)
	require.Equal(t, int64(2), snap.Version)
}
