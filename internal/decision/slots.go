package decision

import (
	"math/rand"

	"schedbot/internal/domain"
)

type Rand interface {
	IntN(n int) int
}

// Slots pairs every DATE entity with the first TIME entity that follows it
// before the next DATE. Dates without such a time get defaultTime.
func Slots(entities []domain.Entity, defaultTime string) []domain.Poll {
	var out []domain.Poll
	open := -1
	for _, e := range entities {
		switch e.Label {
		case domain.EntityDate:
			out = append(out, domain.Poll{Date: e.Text, Time: defaultTime})
			open = len(out) - 1
		case domain.EntityTime:
			if open >= 0 {
				out[open].Time = e.Text
				open = -1
			}
		}
	}
	return out
}

// SampleSlot picks one slot from the availability context parse. r may be
// nil, in which case the global source is used.
func (e *Engine) SampleSlot(p domain.Parse, r Rand) (domain.Poll, bool) {
	slots := Slots(p.Entities, e.cfg.DefaultTime)
	if len(slots) == 0 {
		return domain.Poll{}, false
	}
	var i int
	if r == nil {
		i = rand.Intn(len(slots))
	} else {
		i = r.IntN(len(slots))
	}
	return slots[i], true
}

// Offer is the reply for a freshly sampled slot. Without a slot it is the
// fallback reply.
func (e *Engine) Offer(slot domain.Poll, ok bool) domain.ResponseDecision {
	if !ok {
		return domain.ResponseDecision{Text: e.cfg.FallbackReply, Provenance: domain.ProvenanceFallback}
	}
	s := slot
	return domain.ResponseDecision{
		Text:       "How about " + slot.Date + " at " + slot.Time + "? Let me check with the team.",
		Provenance: domain.ProvenanceAffirmative,
		Confidence: 1,
		Poll:       &s,
	}
}
