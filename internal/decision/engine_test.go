package decision

import (
	"context"
	"errors"
	"math"
	"testing"

	"schedbot/internal/domain"
)

const (
	negCtx = "We are unavailable Wednesday."
	affCtx = "We are available Tuesday any time."
)

type fakeQA struct {
	answers map[string]domain.QAAnswer
	errs    map[string]error
}

func (f fakeQA) Answer(_ context.Context, _ string, c string) (domain.QAAnswer, error) {
	if err := f.errs[c]; err != nil {
		return domain.QAAnswer{}, err
	}
	return f.answers[c], nil
}

func qa(neg, aff domain.QAAnswer) fakeQA {
	return fakeQA{answers: map[string]domain.QAAnswer{negCtx: neg, affCtx: aff}}
}

var wednesdayAtTen = []domain.Entity{
	{Text: "Wednesday", Label: domain.EntityDate},
	{Text: "10", Label: domain.EntityTime},
}

func TestDecideNegativeTakesPrecedence(t *testing.T) {
	e := NewEngine(DefaultConfig(), qa(
		domain.QAAnswer{Answer: "Wednesday", Score: 0.15},
		domain.QAAnswer{Answer: "Tuesday", Score: 0.9},
	))

	got, err := e.Decide(context.Background(), "Is Wednesday at 10 good for you?", negCtx, affCtx, wednesdayAtTen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceNegative {
		t.Fatalf("provenance=%s, want negative", got.Provenance)
	}
	if got.Text != "Wednesday doesn't work. How about not Wednesday." {
		t.Fatalf("text=%q", got.Text)
	}
	if got.Poll != nil {
		t.Fatalf("negative reply proposed a poll: %+v", got.Poll)
	}
	assertNear(t, got.Confidence, 0.15)
}

func TestDecideNegativeWithoutDateOmitsAlternative(t *testing.T) {
	e := NewEngine(DefaultConfig(), qa(domain.QAAnswer{Answer: "Wednesday", Score: 0.5}, domain.QAAnswer{}))
	got, err := e.Decide(context.Background(), "Are you free?", negCtx, affCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "Wednesday doesn't work." {
		t.Fatalf("text=%q", got.Text)
	}
}

func TestDecideAffirmative(t *testing.T) {
	e := NewEngine(DefaultConfig(), qa(
		domain.QAAnswer{Answer: "Wednesday", Score: 0.05},
		domain.QAAnswer{Answer: "Tuesday", Score: 0.4},
	))

	got, err := e.Decide(context.Background(), "Is Wednesday at 10 good for you?", negCtx, affCtx, wednesdayAtTen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceAffirmative {
		t.Fatalf("provenance=%s, want affirmative", got.Provenance)
	}
	if got.Text != "Wednesday might work, let me check with the team." {
		t.Fatalf("text=%q", got.Text)
	}
	if got.Poll == nil || *got.Poll != (domain.Poll{Date: "Wednesday", Time: "10"}) {
		t.Fatalf("poll=%+v, want Wednesday/10", got.Poll)
	}
}

func TestDecideAffirmativeDefaults(t *testing.T) {
	e := NewEngine(Config{DefaultTime: "noon"}, qa(domain.QAAnswer{}, domain.QAAnswer{Answer: "Tuesday", Score: 0.3}))

	got, err := e.Decide(context.Background(), "Does the week work?", negCtx, affCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Poll == nil || got.Poll.Date != "Tuesday" || got.Poll.Time != "noon" {
		t.Fatalf("poll=%+v, want Tuesday/noon", got.Poll)
	}
}

func TestDecideFallback(t *testing.T) {
	e := NewEngine(DefaultConfig(), qa(domain.QAAnswer{Score: 0.1}, domain.QAAnswer{Score: 0.07}))

	got, err := e.Decide(context.Background(), "Hmm", negCtx, affCtx, wednesdayAtTen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceFallback || got.Poll != nil {
		t.Fatalf("got=%+v, want fallback without poll", got)
	}
	if got.Text != "Not sure what to answer" {
		t.Fatalf("text=%q", got.Text)
	}
	assertNear(t, got.Confidence, 0.1)
}

func TestDecideThresholdIsConfigurable(t *testing.T) {
	e := NewEngine(Config{Threshold: 0.5}, qa(domain.QAAnswer{Score: 0.3}, domain.QAAnswer{Answer: "Tuesday", Score: 0.6}))
	got, err := e.Decide(context.Background(), "Tuesday?", negCtx, affCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceAffirmative {
		t.Fatalf("provenance=%s, want affirmative", got.Provenance)
	}
}

func TestDecideZeroThreshold(t *testing.T) {
	e := NewEngine(Config{Threshold: 0}, qa(domain.QAAnswer{}, domain.QAAnswer{Answer: "Tuesday", Score: 0.05}))
	if e.Config().Threshold != 0 {
		t.Fatalf("threshold=%v, want 0", e.Config().Threshold)
	}
	got, err := e.Decide(context.Background(), "Tuesday?", negCtx, affCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceAffirmative {
		t.Fatalf("provenance=%s, want affirmative", got.Provenance)
	}

	if d := NewEngine(Config{Threshold: -1}, nil).Config().Threshold; d != DefaultConfig().Threshold {
		t.Fatalf("negative threshold resolved to %v, want default", d)
	}
}

func TestDecideCollaboratorFailure(t *testing.T) {
	boom := errors.New("qa down")
	e := NewEngine(DefaultConfig(), fakeQA{
		answers: map[string]domain.QAAnswer{negCtx: {Answer: "Wednesday", Score: 0.9}},
		errs:    map[string]error{affCtx: boom},
	})

	got, err := e.Decide(context.Background(), "Wednesday?", negCtx, affCtx, wednesdayAtTen)
	if !errors.Is(err, domain.ErrCollaboratorFailure) || !errors.Is(err, boom) {
		t.Fatalf("err=%v, want collaborator failure wrapping qa down", err)
	}
	if got != (domain.ResponseDecision{}) {
		t.Fatalf("got=%+v, want zero decision", got)
	}
}

func TestEarliestUsesParserOrder(t *testing.T) {
	entities := []domain.Entity{
		{Text: "Friday", Label: domain.EntityDate},
		{Text: "9", Label: domain.EntityTime},
		{Text: "Monday", Label: domain.EntityDate},
	}
	if got, ok := Earliest(entities, domain.EntityDate); !ok || got != "Friday" {
		t.Fatalf("earliest date=%q ok=%v, want Friday", got, ok)
	}
	if _, ok := Earliest(entities, "PERSON"); ok {
		t.Fatalf("found an entity that is not there")
	}
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
