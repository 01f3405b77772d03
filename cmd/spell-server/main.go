package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"schedbot/internal/config"
	"schedbot/internal/logging"
	"schedbot/internal/spell"
)

type checkRequest struct {
	Words []string `json:"words"`
}

type checkResponse struct {
	Unknown   map[string]string `json:"unknown"`
	LatencyMS float64           `json:"latency_ms"`
}

type correctRequest struct {
	Word string `json:"word"`
}

func main() {
	config.LoadDotEnv()
	cfg, err := config.LoadSpellServerConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log)
	checker := spell.NewChecker()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes(cfg, checker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("spell server started", "addr", cfg.HTTPAddr, "engine", spell.Engine, "words", checker.Size())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func routes(cfg config.SpellServerConfig, checker *spell.Checker) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"engine": spell.Engine,
			"words":  checker.Size(),
		})
	})
	r.Post("/v1/spell/check", func(w http.ResponseWriter, req *http.Request) {
		var in checkRequest
		if err := decodeJSONBody(req, cfg.MaxBodyBytes, &in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if len(in.Words) > cfg.MaxWords {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("at most %d words per request", cfg.MaxWords)})
			return
		}

		start := time.Now()
		out := checker.Check(in.Words)
		writeJSON(w, http.StatusOK, checkResponse{Unknown: out, LatencyMS: roundMillis(time.Since(start))})
	})
	r.Post("/v1/spell/correct", func(w http.ResponseWriter, req *http.Request) {
		var in correctRequest
		if err := decodeJSONBody(req, cfg.MaxBodyBytes, &in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		in.Word = strings.TrimSpace(in.Word)
		if in.Word == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "word is required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"word":       in.Word,
			"known":      checker.Known(in.Word),
			"correction": checker.Correction(in.Word),
		})
	})
	return r
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

func roundMillis(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return math.Round(ms*1000) / 1000
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
