package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"schedbot/internal/domain"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test", time.Hour), mr, rdb
}

func pollingConversation(userID, pollID string, openedAt time.Time) domain.Conversation {
	return domain.Conversation{
		UserID:       userID,
		State:        domain.StatePolling,
		Poll:         &domain.Poll{ID: pollID, Date: "Tuesday", Time: "10pm"},
		PollOpenedAt: openedAt,
		UpdatedAt:    openedAt,
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newRedisStore(t)

	_, err := store.GetConversation(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrConversationNotFound)

	openedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveConversation(ctx, pollingConversation("u1", "p1", openedAt)))

	got, err := store.GetConversation(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.StatePolling, got.State)
	require.Equal(t, "p1", got.Poll.ID)
	require.Equal(t, "Tuesday", got.Poll.Date)
	require.True(t, got.PollOpenedAt.Equal(openedAt))
	require.True(t, got.PollOpen())

	require.Equal(t, time.Hour, mr.TTL("test:conversation:u1"))
	require.Equal(t, time.Hour, mr.TTL("test:poll:p1"))
}

func TestRedisStoreFindConversationByPoll(t *testing.T) {
	ctx := context.Background()
	store, mr, _ := newRedisStore(t)
	openedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := store.FindConversationByPoll(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrPollNotFound)

	require.NoError(t, store.SaveConversation(ctx, pollingConversation("u1", "p1", openedAt)))
	got, err := store.FindConversationByPoll(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	// A restart drops the poll but leaves the index entry behind.
	require.NoError(t, store.SaveConversation(ctx, domain.Conversation{UserID: "u1", State: domain.StateInitiated, UpdatedAt: openedAt}))
	require.True(t, mr.Exists("test:poll:p1"))
	_, err = store.FindConversationByPoll(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrPollNotFound)

	// A newer poll on the same user does not answer for the old id.
	require.NoError(t, store.SaveConversation(ctx, pollingConversation("u1", "p2", openedAt)))
	_, err = store.FindConversationByPoll(ctx, "p1")
	require.ErrorIs(t, err, domain.ErrPollNotFound)
	got, err = store.FindConversationByPoll(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, "p2", got.Poll.ID)

	mr.Del("test:conversation:u1")
	_, err = store.FindConversationByPoll(ctx, "p2")
	require.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestRedisStoreListExpiredPolls(t *testing.T) {
	ctx := context.Background()
	store, mr, rdb := newRedisStore(t)
	openedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveConversation(ctx, pollingConversation("u1", "p1", openedAt)))
	require.NoError(t, store.SaveConversation(ctx, pollingConversation("u2", "p2", openedAt.Add(time.Hour))))

	expired, err := store.ListExpiredPolls(ctx, openedAt)
	require.NoError(t, err)
	require.Empty(t, expired)

	expired, err = store.ListExpiredPolls(ctx, openedAt.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "u1", expired[0].UserID)

	expired, err = store.ListExpiredPolls(ctx, openedAt.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 2)

	// Voting ended: the conversation leaves the polling set.
	done := pollingConversation("u1", "p1", openedAt)
	done.State = domain.StateAwaiting
	done.PollOpenedAt = time.Time{}
	require.NoError(t, store.SaveConversation(ctx, done))
	n, err := rdb.ZCard(ctx, "test:polling").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// A conversation that expired out of Redis is pruned from the set.
	mr.Del("test:conversation:u2")
	expired, err = store.ListExpiredPolls(ctx, openedAt.Add(2*time.Hour))
	require.NoError(t, err)
	require.Empty(t, expired)
	n, err = rdb.ZCard(ctx, "test:polling").Result()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestServiceOnRedisStore(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newRedisStore(t)
	rec := &recorder{}
	svc := New(store, nil, rec, openPoll(t, domain.StateReady), nil)

	res, err := svc.HandleMessage(ctx, "u1", "When are you free?")
	require.NoError(t, err)

	tr, _, err := svc.HandlePollResult(ctx, res.Response.Poll.ID, false)
	require.NoError(t, err)
	require.Equal(t, domain.StateInitiated, tr.NextState)

	_, _, err = svc.HandlePollResult(ctx, res.Response.Poll.ID, true)
	require.ErrorIs(t, err, domain.ErrPollNotFound)
}
