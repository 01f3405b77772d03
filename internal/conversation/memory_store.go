package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"schedbot/internal/domain"
)

// MemoryStore keeps conversations in process. It backs single-node runs and
// tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]domain.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]domain.Conversation)}
}

func (m *MemoryStore) GetConversation(_ context.Context, userID string) (domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data[userID]
	if !ok {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return clone(c), nil
}

func (m *MemoryStore) SaveConversation(_ context.Context, c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[c.UserID] = clone(c)
	return nil
}

func (m *MemoryStore) FindConversationByPoll(_ context.Context, pollID string) (domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.data {
		if c.Poll != nil && c.Poll.ID == pollID {
			return clone(c), nil
		}
	}
	return domain.Conversation{}, domain.ErrPollNotFound
}

func (m *MemoryStore) ListExpiredPolls(_ context.Context, openedBefore time.Time) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range m.data {
		if c.PollOpen() && c.PollOpenedAt.Before(openedBefore) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PollOpenedAt.Before(out[j].PollOpenedAt) })
	return out, nil
}

func clone(c domain.Conversation) domain.Conversation {
	if c.Poll != nil {
		p := *c.Poll
		c.Poll = &p
	}
	return c
}
