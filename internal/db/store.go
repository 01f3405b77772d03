package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schedbot/internal/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, q := range migrations {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS poll_id TEXT;`,
	`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS poll_date TEXT;`,
	`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS poll_time TEXT;`,
	`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS poll_opened_at TIMESTAMPTZ;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_poll_id ON conversations(poll_id) WHERE poll_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_polling ON conversations(poll_opened_at) WHERE state = 'polling';`,
	`CREATE TABLE IF NOT EXISTS decisions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		question TEXT NOT NULL,
		intent TEXT NOT NULL,
		action TEXT NOT NULL,
		provenance TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		next_state TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_user_created ON decisions(user_id, created_at);`,
}

const conversationColumns = `user_id, state, poll_id, poll_date, poll_time, poll_opened_at, updated_at`

func (s *Store) GetConversation(ctx context.Context, userID string) (domain.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id=$1
	`, userID)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return c, err
}

func (s *Store) SaveConversation(ctx context.Context, c domain.Conversation) error {
	var pollID, pollDate, pollTime *string
	if c.Poll != nil {
		pollID, pollDate, pollTime = nullable(c.Poll.ID), &c.Poll.Date, &c.Poll.Time
	}
	var openedAt *time.Time
	if !c.PollOpenedAt.IsZero() {
		openedAt = &c.PollOpenedAt
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations(user_id, state, poll_id, poll_date, poll_time, poll_opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			poll_id = EXCLUDED.poll_id,
			poll_date = EXCLUDED.poll_date,
			poll_time = EXCLUDED.poll_time,
			poll_opened_at = EXCLUDED.poll_opened_at,
			updated_at = EXCLUDED.updated_at
	`, c.UserID, string(c.State), pollID, pollDate, pollTime, openedAt, updatedAt)
	return err
}

func (s *Store) FindConversationByPoll(ctx context.Context, pollID string) (domain.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE poll_id=$1
	`, pollID)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, domain.ErrPollNotFound
	}
	return c, err
}

func (s *Store) ListExpiredPolls(ctx context.Context, openedBefore time.Time) ([]domain.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE state='polling' AND poll_id IS NOT NULL AND poll_opened_at < $1
		ORDER BY poll_opened_at ASC
		LIMIT 100
	`, openedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Conversation, 0, 8)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AppendDecision(ctx context.Context, rec domain.DecisionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decisions(user_id, text, question, intent, action, provenance, confidence, state, next_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.UserID, rec.Text, rec.Question, rec.Intent, string(rec.Action), string(rec.Provenance),
		rec.Confidence, string(rec.State), string(rec.NextState), createdAt)
	return err
}

func (s *Store) ListDecisions(ctx context.Context, userID string, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, text, question, intent, action, provenance, confidence, state, next_state, created_at
		FROM decisions
		WHERE user_id=$1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DecisionRecord, 0, limit)
	for rows.Next() {
		var (
			rec                                   domain.DecisionRecord
			action, provenance, state, nextState string
		)
		if err := rows.Scan(&rec.UserID, &rec.Text, &rec.Question, &rec.Intent, &action, &provenance,
			&rec.Confidence, &state, &nextState, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Action = domain.RequiredAction(action)
		rec.Provenance = domain.Provenance(provenance)
		rec.State = domain.ConversationState(state)
		rec.NextState = domain.ConversationState(nextState)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var (
		c                          domain.Conversation
		state                      string
		pollID, pollDate, pollTime *string
		openedAt                   *time.Time
	)
	if err := row.Scan(&c.UserID, &state, &pollID, &pollDate, &pollTime, &openedAt, &c.UpdatedAt); err != nil {
		return domain.Conversation{}, err
	}
	c.State = domain.ConversationState(state)
	if pollID != nil {
		c.Poll = &domain.Poll{ID: *pollID, Date: deref(pollDate), Time: deref(pollTime)}
	}
	if openedAt != nil {
		c.PollOpenedAt = openedAt.UTC()
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
