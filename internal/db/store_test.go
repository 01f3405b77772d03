package db

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"schedbot/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			if v, ok := r.values[i].(string); ok {
				*p = &v
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			if v, ok := r.values[i].(time.Time); ok {
				*p = &v
			}
		}
	}
	return nil
}

func TestScanConversationWithPoll(t *testing.T) {
	opened := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{"u1", "polling", "p1", "Friday", "9", opened, opened}}

	c, err := scanConversation(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State != domain.StatePolling || c.Poll == nil || c.Poll.ID != "p1" || c.Poll.Time != "9" {
		t.Fatalf("conversation=%+v", c)
	}
	if !c.PollOpen() {
		t.Fatalf("poll should be open")
	}
}

func TestScanConversationWithoutPoll(t *testing.T) {
	row := fakeRow{values: []any{"u1", "initiated", nil, nil, nil, nil, time.Now()}}
	c, err := scanConversation(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Poll != nil || !c.PollOpenedAt.IsZero() {
		t.Fatalf("conversation=%+v, want no poll", c)
	}
}

func TestScanConversationPropagatesNoRows(t *testing.T) {
	_, err := scanConversation(fakeRow{err: pgx.ErrNoRows})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("err=%v, want ErrNoRows", err)
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	all := strings.Join(migrations, "\n")
	for _, table := range []string{"conversations", "decisions"} {
		if !strings.Contains(all, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("missing table %s", table)
		}
	}
}
