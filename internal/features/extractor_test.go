package features

import (
	"testing"

	"schedbot/internal/domain"
)

func TestExtractEmptyParse(t *testing.T) {
	got := Extract(domain.Parse{})
	if got != (domain.Features{}) {
		t.Fatalf("Extract(empty)=%+v, want all false", got)
	}
}

func TestExtractEntities(t *testing.T) {
	p := domain.Parse{
		Tokens: []domain.Token{{Text: "Wednesday", Tag: "NNP", Dep: "ROOT", Head: 0}},
		Entities: []domain.Entity{
			{Text: "Wednesday", Label: "DATE"},
			{Text: "10", Label: "TIME"},
		},
	}
	got := Extract(p)
	if !got.HasDate || !got.HasTime {
		t.Fatalf("has_date=%v has_time=%v, want true true", got.HasDate, got.HasTime)
	}

	p.Entities = []domain.Entity{{Text: "Bob", Label: "PERSON"}}
	got = Extract(p)
	if got.HasDate || got.HasTime {
		t.Fatalf("has_date=%v has_time=%v, want false false", got.HasDate, got.HasTime)
	}
}

func TestExtractFirstTokenSignals(t *testing.T) {
	tests := []struct {
		name    string
		first   domain.Token
		wantWH  bool
		wantAux bool
	}{
		{name: "wh lower", first: domain.Token{Text: "when", Tag: "WRB"}, wantWH: true},
		{name: "wh capitalised", first: domain.Token{Text: "How", Tag: "WRB"}, wantWH: true},
		{name: "modal", first: domain.Token{Text: "Can", Tag: "MD"}, wantAux: true},
		{name: "third person present", first: domain.Token{Text: "Is", Tag: "VBZ"}, wantAux: true},
		{name: "non third person present", first: domain.Token{Text: "Are", Tag: "VBP"}, wantAux: true},
		{name: "past tense", first: domain.Token{Text: "Was", Tag: "VBD"}},
		{name: "noun", first: domain.Token{Text: "Wednesday", Tag: "NNP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(domain.Parse{Tokens: []domain.Token{tt.first}})
			if got.IsWHQuestion != tt.wantWH || got.HasAuxiliaryVerb != tt.wantAux {
				t.Fatalf("wh=%v aux=%v, want wh=%v aux=%v", got.IsWHQuestion, got.HasAuxiliaryVerb, tt.wantWH, tt.wantAux)
			}
		})
	}
}

func TestExtractInversion(t *testing.T) {
	// "Can we meet Friday ?"
	inverted := []domain.Token{
		{Text: "Can", Tag: "MD", Dep: "aux", Head: 2},
		{Text: "we", Tag: "PRP", Dep: "nsubj", Head: 2},
		{Text: "meet", Tag: "VB", Dep: "ROOT", Head: 2},
		{Text: "Friday", Tag: "NNP", Dep: "npadvmod", Head: 2},
		{Text: "?", Tag: ".", Dep: "punct", Head: 2, IsPunct: true},
	}
	if !Extract(domain.Parse{Tokens: inverted}).HasInversion {
		t.Fatalf("expected inversion for %q", "Can we meet Friday ?")
	}

	// "We can meet Friday ."
	declarative := []domain.Token{
		{Text: "We", Tag: "PRP", Dep: "nsubj", Head: 2},
		{Text: "can", Tag: "MD", Dep: "aux", Head: 2},
		{Text: "meet", Tag: "VB", Dep: "ROOT", Head: 2},
		{Text: "Friday", Tag: "NNP", Dep: "npadvmod", Head: 2},
		{Text: ".", Tag: ".", Dep: "punct", Head: 2, IsPunct: true},
	}
	if Extract(domain.Parse{Tokens: declarative}).HasInversion {
		t.Fatalf("unexpected inversion for %q", "We can meet Friday .")
	}
}

func TestExtractInversionScansEveryAuxiliary(t *testing.T) {
	// "I will check , could you confirm ?" -- first aux has no later subject,
	// the second one does.
	tokens := []domain.Token{
		{Text: "I", Tag: "PRP", Dep: "nsubj", Head: 2},
		{Text: "will", Tag: "MD", Dep: "aux", Head: 2},
		{Text: "check", Tag: "VB", Dep: "ROOT", Head: 2},
		{Text: ",", Tag: ",", Dep: "punct", Head: 2, IsPunct: true},
		{Text: "could", Tag: "MD", Dep: "aux", Head: 6},
		{Text: "you", Tag: "PRP", Dep: "nsubj", Head: 6},
		{Text: "confirm", Tag: "VB", Dep: "conj", Head: 2},
		{Text: "?", Tag: ".", Dep: "punct", Head: 2, IsPunct: true},
	}
	if !Extract(domain.Parse{Tokens: tokens}).HasInversion {
		t.Fatalf("expected inversion from the second auxiliary")
	}
}

func TestExtractInversionIgnoresBadHeads(t *testing.T) {
	tokens := []domain.Token{
		{Text: "Is", Tag: "VBZ", Dep: "aux", Head: 9},
		{Text: "it", Tag: "PRP", Dep: "expl", Head: -1},
	}
	if Extract(domain.Parse{Tokens: tokens}).HasInversion {
		t.Fatalf("out of range heads must not report inversion")
	}
}
