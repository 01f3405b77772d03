package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"schedbot/internal/config"
	"schedbot/internal/conversation"
	"schedbot/internal/db"
	"schedbot/internal/decision"
	"schedbot/internal/intent"
	"schedbot/internal/llm"
	"schedbot/internal/mqtt"
	"schedbot/internal/nlp"
	"schedbot/internal/orchestrator"
)

// backend holds whichever conversation store STORE_BACKEND selected. The
// decision log is only kept in Postgres.
type backend struct {
	store     conversation.Store
	decisions *db.Store
	close     func()
}

func (b *backend) Shutdown() error {
	if b.close != nil {
		b.close()
	}
	return nil
}

// events is the optional MQTT bridge; hub is nil when no broker is set.
type events struct {
	hub *mqtt.Hub
}

func register(di *do.Injector) {
	do.Provide(di, provideRegistry)
	do.Provide(di, provideEngine)
	do.Provide(di, provideOrchestrator)
	do.Provide(di, provideBackend)
	do.Provide(di, provideEvents)
	do.Provide(di, provideConversations)
}

func provideRegistry(di *do.Injector) (*intent.Registry, error) {
	cfg := do.MustInvoke[config.ServerConfig](di)

	c, err := intent.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	registry := intent.NewRegistry()
	if _, err := registry.Load(c); err != nil {
		return nil, err
	}
	return registry, nil
}

func provideEngine(di *do.Injector) (*decision.Engine, error) {
	cfg := do.MustInvoke[config.ServerConfig](di)
	qa := nlp.NewQAClient(cfg.QAURL, cfg.NLPAPIKey, cfg.NLPTimeout)
	return decision.NewEngine(decision.Config{
		Threshold:   cfg.DecisionThreshold,
		DefaultTime: cfg.DefaultPollTime,
	}, qa), nil
}

func provideOrchestrator(di *do.Injector) (*orchestrator.Service, error) {
	cfg := do.MustInvoke[config.ServerConfig](di)
	logger := do.MustInvoke[*slog.Logger](di)

	var corrector orchestrator.Corrector
	switch {
	case cfg.GrammarURL != "":
		corrector = nlp.NewGrammarClient(cfg.GrammarURL, cfg.NLPAPIKey, cfg.NLPTimeout)
	case cfg.LLM.Provider != "":
		c, err := llm.NewCorrector(llm.Config(cfg.LLM))
		if err != nil {
			return nil, err
		}
		corrector = c
	}

	var embedder orchestrator.Embedder
	if cfg.EmbedURL != "" {
		embedder = nlp.NewEmbedClient(cfg.EmbedURL, cfg.NLPAPIKey, cfg.NLPTimeout)
	} else {
		embedder = llm.NewEmbedder(llm.Config(cfg.LLM))
	}

	var speller orchestrator.SpellChecker
	if cfg.SpellURL != "" {
		speller = nlp.NewSpellClient(cfg.SpellURL, cfg.NLPAPIKey, cfg.NLPTimeout)
	}

	return orchestrator.New(orchestrator.Config{
		NegativeContext:    cfg.NegativeContext,
		AffirmativeContext: cfg.AffirmativeContext,
		Retries:            cfg.Retries,
	},
		corrector,
		embedder,
		nlp.NewParseClient(cfg.ParseURL, cfg.NLPAPIKey, cfg.NLPTimeout),
		speller,
		do.MustInvoke[*intent.Registry](di),
		do.MustInvoke[*decision.Engine](di),
		logger,
	), nil
}

func provideBackend(di *do.Injector) (*backend, error) {
	cfg := do.MustInvoke[config.ServerConfig](di)
	ctx := do.MustInvoke[context.Context](di)

	switch cfg.Store {
	case config.StorePostgres:
		store, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{store: store, decisions: store, close: store.Close}, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &backend{
			store: conversation.NewRedisStore(rdb, "schedbot", cfg.StateTTL),
			close: func() { _ = rdb.Close() },
		}, nil
	default:
		return &backend{store: conversation.NewMemoryStore()}, nil
	}
}

func provideEvents(di *do.Injector) (*events, error) {
	cfg := do.MustInvoke[config.ServerConfig](di)
	if !cfg.MQTT.Enabled() {
		return &events{}, nil
	}
	return &events{hub: mqtt.NewHub(mqtt.HubConfig{
		BrokerURL:   cfg.MQTT.BrokerURL,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, do.MustInvoke[*slog.Logger](di))}, nil
}

func provideConversations(di *do.Injector) (*conversation.Service, error) {
	b := do.MustInvoke[*backend](di)
	ev := do.MustInvoke[*events](di)

	var decisions conversation.DecisionLog
	if b.decisions != nil {
		decisions = b.decisions
	}
	var publisher conversation.Publisher
	if ev.hub != nil {
		publisher = ev.hub
	}
	return conversation.New(
		b.store,
		decisions,
		publisher,
		do.MustInvoke[*orchestrator.Service](di),
		do.MustInvoke[*slog.Logger](di),
	), nil
}
