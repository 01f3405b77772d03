package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"schedbot/internal/domain"
)

const defaultRedisTTL = 7 * 24 * time.Hour

// RedisStore keeps each conversation as a JSON value with a TTL. Open polls
// are indexed by id and kept in a sorted set scored by opening time.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "schedbot"
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) conversationKey(userID string) string {
	return r.prefix + ":conversation:" + userID
}

func (r *RedisStore) pollKey(pollID string) string {
	return r.prefix + ":poll:" + pollID
}

func (r *RedisStore) pollingKey() string {
	return r.prefix + ":polling"
}

func (r *RedisStore) GetConversation(ctx context.Context, userID string) (domain.Conversation, error) {
	data, err := r.rdb.Get(ctx, r.conversationKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}

	var c domain.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return c, nil
}

func (r *RedisStore) SaveConversation(ctx context.Context, c domain.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.conversationKey(c.UserID), data, r.ttl)
		if c.Poll != nil && c.Poll.ID != "" {
			pipe.Set(ctx, r.pollKey(c.Poll.ID), c.UserID, r.ttl)
		}
		if c.PollOpen() {
			pipe.ZAdd(ctx, r.pollingKey(), redis.Z{Score: float64(c.PollOpenedAt.Unix()), Member: c.UserID})
		} else {
			pipe.ZRem(ctx, r.pollingKey(), c.UserID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (r *RedisStore) FindConversationByPoll(ctx context.Context, pollID string) (domain.Conversation, error) {
	userID, err := r.rdb.Get(ctx, r.pollKey(pollID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Conversation{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load poll: %w", err)
	}

	c, err := r.GetConversation(ctx, userID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return domain.Conversation{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	// The index outlives a restart; the conversation is the source of truth.
	if c.Poll == nil || c.Poll.ID != pollID {
		return domain.Conversation{}, domain.ErrPollNotFound
	}
	return c, nil
}

func (r *RedisStore) ListExpiredPolls(ctx context.Context, openedBefore time.Time) ([]domain.Conversation, error) {
	userIDs, err := r.rdb.ZRangeByScore(ctx, r.pollingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(openedBefore.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list polling conversations: %w", err)
	}

	out := make([]domain.Conversation, 0, len(userIDs))
	for _, userID := range userIDs {
		c, err := r.GetConversation(ctx, userID)
		if errors.Is(err, domain.ErrConversationNotFound) {
			r.rdb.ZRem(ctx, r.pollingKey(), userID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.PollOpen() {
			out = append(out, c)
		}
	}
	return out, nil
}
