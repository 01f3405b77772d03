package features

import (
	"strings"

	"schedbot/internal/domain"
)

var whWords = map[string]struct{}{
	"who": {}, "what": {}, "where": {}, "when": {}, "why": {}, "how": {},
}

// Penn tags for a modal or a present-tense verb.
var auxiliaryTags = map[string]struct{}{
	"MD": {}, "VBZ": {}, "VBP": {},
}

var subjectDeps = map[string]struct{}{
	"nsubj": {}, "nsubjpass": {}, "csubj": {}, "csubjpass": {}, "expl": {},
}

const auxDep = "aux"

func Extract(p domain.Parse) domain.Features {
	return domain.Features{
		HasDate:          hasEntity(p.Entities, domain.EntityDate),
		HasTime:          hasEntity(p.Entities, domain.EntityTime),
		IsWHQuestion:     isWHQuestion(p.Tokens),
		HasAuxiliaryVerb: hasAuxiliaryVerb(p.Tokens),
		HasInversion:     hasInversion(p.Tokens),
	}
}

func hasEntity(entities []domain.Entity, label string) bool {
	for _, e := range entities {
		if e.Label == label {
			return true
		}
	}
	return false
}

func isWHQuestion(tokens []domain.Token) bool {
	if len(tokens) == 0 {
		return false
	}
	_, ok := whWords[strings.ToLower(tokens[0].Text)]
	return ok
}

func hasAuxiliaryVerb(tokens []domain.Token) bool {
	if len(tokens) == 0 {
		return false
	}
	_, ok := auxiliaryTags[tokens[0].Tag]
	return ok
}

// hasInversion reports whether some auxiliary precedes a subject that hangs
// off the same head. Every auxiliary is checked.
func hasInversion(tokens []domain.Token) bool {
	for i, tok := range tokens {
		if tok.Dep != auxDep {
			continue
		}
		head := tok.Head
		if head < 0 || head >= len(tokens) {
			continue
		}
		for j, child := range tokens {
			if j == head || child.Head != head {
				continue
			}
			if _, ok := subjectDeps[child.Dep]; ok && j > i {
				return true
			}
		}
	}
	return false
}
