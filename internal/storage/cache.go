package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"msghub/internal/model"
)

// CachedStore layers a Redis read-through cache over another Store. Only the
// inbox/outbox queries are cached; every write that could touch a cached box
// invalidates it. Cache failures degrade to the inner store with a warning,
// never to an error for the peer.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
	logger *slog.Logger
}

// NewCachedStore connects to Redis and wraps inner with the cache layer.
func NewCachedStore(inner Store, redisAddr, redisPassword string, ttl time.Duration, logger *slog.Logger) (*CachedStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CachedStore{
		Store:  inner,
		client: rdb,
		ttl:    ttl,
		ctx:    context.Background(),
		logger: logger,
	}, nil
}

func inboxKey(username string) string {
	return "inbox:user:" + username
}

func outboxKey(username string) string {
	return "outbox:user:" + username
}

func (c *CachedStore) InboxOf(username string) ([]model.Message, error) {
	return c.cachedBox(inboxKey(username), username, c.Store.InboxOf)
}

func (c *CachedStore) OutboxOf(username string) ([]model.Message, error) {
	return c.cachedBox(outboxKey(username), username, c.Store.OutboxOf)
}

func (c *CachedStore) cachedBox(key, username string, load func(string) ([]model.Message, error)) ([]model.Message, error) {
	raw, err := c.client.Get(c.ctx, key).Result()
	if err == nil {
		var cached []model.Message
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		// Unreadable entry: fall through and overwrite it.
	} else if err != redis.Nil {
		c.logger.Warn("cache_read_failed", "key", key, "error", err.Error())
	}

	messages, err := load(username)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(messages); jsonErr == nil {
		if setErr := c.client.Set(c.ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("cache_write_failed", "key", key, "error", setErr.Error())
		}
	}
	return messages, nil
}

// InsertMessage writes through and drops the two boxes the new message
// lands in.
func (c *CachedStore) InsertMessage(m *model.Message) error {
	if err := c.Store.InsertMessage(m); err != nil {
		return err
	}
	c.invalidate(inboxKey(m.Receiver.Username), outboxKey(m.Sender.Username))
	return nil
}

// RemoveUser writes through and drops the removed user's boxes along with
// the placeholder's, which just inherited the reassigned history. Boxes of
// other correspondents refresh when their TTL lapses.
func (c *CachedStore) RemoveUser(username string) error {
	if err := c.Store.RemoveUser(username); err != nil {
		return err
	}
	c.invalidate(
		inboxKey(username), outboxKey(username),
		inboxKey(DeletedUsername), outboxKey(DeletedUsername),
	)
	return nil
}

// UpdateUser writes through and drops the boxes under both the old and the
// new username.
func (c *CachedStore) UpdateUser(oldUsername string, u *model.User, password string) error {
	if err := c.Store.UpdateUser(oldUsername, u, password); err != nil {
		return err
	}
	c.invalidate(
		inboxKey(oldUsername), outboxKey(oldUsername),
		inboxKey(u.Username), outboxKey(u.Username),
	)
	return nil
}

func (c *CachedStore) invalidate(keys ...string) {
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache_invalidate_failed", "error", err.Error())
	}
}

// Close releases the Redis client. The inner store is closed by its owner.
func (c *CachedStore) Close() error {
	return c.client.Close()
}
