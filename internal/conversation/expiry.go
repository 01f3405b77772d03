package conversation

import (
	"context"
	"errors"
	"time"

	"schedbot/internal/domain"
)

// RunPollExpiry fails every poll that stayed open longer than ttl, checking
// once per interval until ctx is done.
func (s *Service) RunPollExpiry(ctx context.Context, interval, ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("poll expiry worker started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ctx.Done():
			return
		case tickAt := <-ticker.C:
			s.ExpirePolls(ctx, tickAt.Add(-ttl))
		}
	}
}

// ExpirePolls returns how many conversations were moved on.
func (s *Service) ExpirePolls(ctx context.Context, openedBefore time.Time) int {
	expired, err := s.store.ListExpiredPolls(ctx, openedBefore.UTC())
	if err != nil {
		s.logger.Warn("poll expiry: list expired polls failed", "error", err)
		return 0
	}

	n := 0
	for _, conv := range expired {
		if ctx.Err() != nil {
			return n
		}
		if conv.Poll == nil {
			continue
		}
		tr, _, err := s.handleEvent(ctx, conv.UserID, domain.InputFails, conv.Poll.ID)
		if errors.Is(err, domain.ErrPollNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("poll expiry: fail poll failed", "user_id", conv.UserID, "error", err)
			continue
		}
		if tr.Handled {
			n++
			s.logger.Info("poll expired", "user_id", conv.UserID, "next_state", tr.NextState)
		}
	}
	return n
}
