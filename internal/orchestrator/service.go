package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	"golang.org/x/sync/errgroup"

	"schedbot/internal/decision"
	"schedbot/internal/dialog"
	"schedbot/internal/domain"
	"schedbot/internal/features"
	"schedbot/internal/intent"
)

type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Parser interface {
	Parse(ctx context.Context, text string) (domain.Parse, error)
}

type SpellChecker interface {
	Check(ctx context.Context, words []string) (map[string]string, error)
}

type CatalogSource interface {
	Current() (intent.Snapshot, bool)
}

const (
	DefaultNegativeContext    = "We are unavailable Wednesday."
	DefaultAffirmativeContext = "We are available Tuesday any time.\nWe are available Wednesday at 5.\nWe are available Friday at 9."

	FailureReply = "Sorry, I couldn't process that. Please try again."
	Greeting     = "Hi, I'm the scheduling assistant. You may suggest a time or I can give you some options."
	FinalReply   = "See you then!"
)

type Config struct {
	NegativeContext    string
	AffirmativeContext string
	// Retries is how many extra attempts a request gets after a collaborator
	// failure.
	Retries int
	Rand    decision.Rand
}

type Service struct {
	cfg       Config
	corrector Corrector
	embedder  Embedder
	parser    Parser
	speller   SpellChecker
	catalog   CatalogSource
	engine    *decision.Engine
	logger    *slog.Logger
}

// New wires the collaborators. corrector and speller may be nil: text is then
// used as typed and no misspelling map is produced.
func New(cfg Config, corrector Corrector, embedder Embedder, parser Parser, speller SpellChecker, catalog CatalogSource, engine *decision.Engine, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.NegativeContext) == "" {
		cfg.NegativeContext = DefaultNegativeContext
	}
	if strings.TrimSpace(cfg.AffirmativeContext) == "" {
		cfg.AffirmativeContext = DefaultAffirmativeContext
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		corrector: corrector,
		embedder:  embedder,
		parser:    parser,
		speller:   speller,
		catalog:   catalog,
		engine:    engine,
		logger:    logger,
	}
}

// Decide runs one message through correction, parsing, classification, the
// dialog machine and, when the machine asks for it, the decision engine.
//
// On a collaborator failure the result still carries the generic failure
// reply with the state unchanged, and the error is returned alongside it.
func (s *Service) Decide(ctx context.Context, req domain.DecideRequest) (domain.DecideResult, error) {
	state := domain.StateReady
	if strings.TrimSpace(req.State) != "" {
		parsed, err := domain.ParseState(req.State)
		if err != nil {
			return domain.DecideResult{}, err
		}
		state = parsed
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.DecideResult{}, fmt.Errorf("text is required")
	}
	negative := firstNonEmpty(req.NegativeContext, s.cfg.NegativeContext)
	affirmative := firstNonEmpty(req.AffirmativeContext, s.cfg.AffirmativeContext)

	start := time.Now()
	var (
		res     domain.DecideResult
		err     error
		attempt int
	)
	for attempt = 0; attempt <= s.cfg.Retries; attempt++ {
		res, err = s.run(ctx, text, state, negative, affirmative)
		if err == nil || !errors.Is(err, domain.ErrCollaboratorFailure) || ctx.Err() != nil {
			break
		}
		s.logger.Warn("collaborator failure, retrying", "attempt", attempt+1, "error", err)
	}

	if err != nil && errors.Is(err, domain.ErrCollaboratorFailure) {
		res.Text = text
		res.State = state
		res.NextState = state
		res.Handled = false
		res.Response = &domain.ResponseDecision{Text: FailureReply, Provenance: domain.ProvenanceFailed}
	}

	s.logger.Info("decide timing",
		"state", state,
		"intent", res.Intent,
		"action", res.Action,
		"next_state", res.NextState,
		"attempts", min(attempt+1, s.cfg.Retries+1),
		"total_ms", time.Since(start).Milliseconds(),
		"error", errString(err),
	)
	return res, err
}

func (s *Service) run(ctx context.Context, text string, state domain.ConversationState, negative, affirmative string) (domain.DecideResult, error) {
	snap, ok := s.catalog.Current()
	if !ok {
		return domain.DecideResult{}, fmt.Errorf("%w: no intent catalog loaded", domain.ErrInvalidConfiguration)
	}

	corrected := text
	if s.corrector != nil {
		out, err := s.corrector.Correct(ctx, text)
		if err != nil {
			return domain.DecideResult{}, collaborator("grammar correction", err)
		}
		if out != "" {
			corrected = out
		}
	}

	var (
		parse     domain.Parse
		embedding []float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.parser.Parse(gctx, corrected)
		if err != nil {
			return collaborator("parse", err)
		}
		parse = p
		return nil
	})
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, corrected)
		if err != nil {
			return collaborator("embed", err)
		}
		embedding = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DecideResult{}, err
	}

	label, scores, err := snap.Classifier.Classify(embedding)
	if err != nil {
		return domain.DecideResult{}, err
	}

	tr := dialog.Transition(state, domain.Input(label))
	res := domain.DecideResult{
		Text:             text,
		Question:         corrected,
		Features:         features.Extract(parse),
		Intent:           label,
		IntentScores:     scores,
		UncorrectedWords: s.misspellings(ctx, parse.Tokens),
		Action:           tr.Action,
		Handled:          tr.Handled,
		State:            state,
		NextState:        tr.NextState,
	}

	switch tr.Action {
	case domain.ActionAnswerDateTime:
		decided, err := s.engine.Decide(ctx, corrected, negative, affirmative, parse.Entities)
		if err != nil {
			return domain.DecideResult{}, err
		}
		res.Response = &decided
	case domain.ActionOpenPoll:
		available, err := s.parser.Parse(ctx, affirmative)
		if err != nil {
			return domain.DecideResult{}, collaborator("parse availability", err)
		}
		slot, found := s.engine.SampleSlot(available, s.cfg.Rand)
		offer := s.engine.Offer(slot, found)
		res.Response = &offer
		if !found {
			// Nothing to poll on, so the conversation does not move.
			res.NextState = state
		}
	default:
		res.Response = ActionReply(tr.Action, nil)
	}
	return res, nil
}

// ActionReply is the fixed reply for actions that need no model. It is nil
// for actions the decision engine answers and for unhandled input.
func ActionReply(action domain.RequiredAction, poll *domain.Poll) *domain.ResponseDecision {
	reply := func(text string) *domain.ResponseDecision {
		return &domain.ResponseDecision{Text: text, Provenance: domain.ProvenanceDialog, Confidence: 1, Poll: poll}
	}
	switch action {
	case domain.ActionRequestConfirmation:
		if poll == nil {
			return reply("The team can make it. Can you confirm?")
		}
		return reply("The team can make " + poll.Date + " at " + poll.Time + ". Can you confirm?")
	case domain.ActionFinalize:
		return reply(FinalReply)
	case domain.ActionRestart:
		return &domain.ResponseDecision{Text: Greeting, Provenance: domain.ProvenanceDialog, Confidence: 1}
	default:
		return nil
	}
}

// misspellings is advisory only; failures are logged and dropped.
func (s *Service) misspellings(ctx context.Context, tokens []domain.Token) map[string]string {
	if s.speller == nil {
		return nil
	}
	words := pie.Map(
		pie.Filter(tokens, func(t domain.Token) bool { return !t.IsPunct && strings.TrimSpace(t.Text) != "" }),
		func(t domain.Token) string { return t.Text },
	)
	if len(words) == 0 {
		return nil
	}
	out, err := s.speller.Check(ctx, pie.Unique(words))
	if err != nil {
		s.logger.Warn("spell check failed", "error", err)
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func collaborator(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrCollaboratorFailure, step, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
