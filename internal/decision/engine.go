package decision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/elliotchance/pie/v2"
	"golang.org/x/sync/errgroup"

	"schedbot/internal/domain"
)

type QA interface {
	Answer(ctx context.Context, question, passage string) (domain.QAAnswer, error)
}

type Config struct {
	// Threshold is the minimum QA score (exclusive) for a context to count.
	// Zero is a valid threshold; a negative one selects the default.
	Threshold     float64
	DefaultTime   string
	FallbackReply string
}

func DefaultConfig() Config {
	return Config{
		Threshold:     0.10,
		DefaultTime:   "10pm",
		FallbackReply: "Not sure what to answer",
	}
}

type Engine struct {
	cfg Config
	qa  QA
}

func NewEngine(cfg Config, qa QA) *Engine {
	def := DefaultConfig()
	if cfg.Threshold < 0 {
		cfg.Threshold = def.Threshold
	}
	if strings.TrimSpace(cfg.DefaultTime) == "" {
		cfg.DefaultTime = def.DefaultTime
	}
	if strings.TrimSpace(cfg.FallbackReply) == "" {
		cfg.FallbackReply = def.FallbackReply
	}
	return &Engine{cfg: cfg, qa: qa}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Decide asks the QA collaborator about both contexts concurrently and then
// applies the policy in fixed order: negative, affirmative, fallback. Any QA
// error is returned as domain.ErrCollaboratorFailure with no reply.
func (e *Engine) Decide(ctx context.Context, question, negativeContext, affirmativeContext string, entities []domain.Entity) (domain.ResponseDecision, error) {
	var negative, affirmative domain.QAAnswer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ans, err := e.qa.Answer(gctx, question, negativeContext)
		if err != nil {
			return fmt.Errorf("%w: qa negative context: %w", domain.ErrCollaboratorFailure, err)
		}
		negative = ans
		return nil
	})
	g.Go(func() error {
		ans, err := e.qa.Answer(gctx, question, affirmativeContext)
		if err != nil {
			return fmt.Errorf("%w: qa affirmative context: %w", domain.ErrCollaboratorFailure, err)
		}
		affirmative = ans
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ResponseDecision{}, err
	}

	return e.Reconcile(negative, affirmative, entities), nil
}

// Reconcile is the pure half of Decide.
func (e *Engine) Reconcile(negative, affirmative domain.QAAnswer, entities []domain.Entity) domain.ResponseDecision {
	date, hasDate := Earliest(entities, domain.EntityDate)

	if negative.Score > e.cfg.Threshold {
		text := strings.TrimSpace(negative.Answer) + " doesn't work."
		if hasDate {
			text += " How about not " + date + "."
		}
		return domain.ResponseDecision{
			Text:       text,
			Provenance: domain.ProvenanceNegative,
			Confidence: negative.Score,
		}
	}

	if affirmative.Score > e.cfg.Threshold {
		if !hasDate {
			date = strings.TrimSpace(affirmative.Answer)
		}
		tm, ok := Earliest(entities, domain.EntityTime)
		if !ok {
			tm = e.cfg.DefaultTime
		}
		return domain.ResponseDecision{
			Text:       date + " might work, let me check with the team.",
			Provenance: domain.ProvenanceAffirmative,
			Confidence: affirmative.Score,
			Poll:       &domain.Poll{Date: date, Time: tm},
		}
	}

	return domain.ResponseDecision{
		Text:       e.cfg.FallbackReply,
		Provenance: domain.ProvenanceFallback,
		Confidence: math.Max(negative.Score, affirmative.Score),
	}
}

// Earliest returns the first entity with the given label in parser order.
func Earliest(entities []domain.Entity, label string) (string, bool) {
	i := pie.FindFirstUsing(entities, func(e domain.Entity) bool {
		return e.Label == label
	})
	if i < 0 {
		return "", false
	}
	return entities[i].Text, true
}
