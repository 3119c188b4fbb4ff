package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// RedisConversationCache implements ConversationCache on go-redis.
//
// History pages are keyed by (room, cursor, limit); every page key is
// also tracked in a per-room set so an append can drop all of a room's
// pages at once.
type RedisConversationCache struct {
	client *redis.Client
	prefix string
}

func NewRedisConversationCache(cfg RedisConfig, prefix string) (*RedisConversationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisConversationCache{client: client, prefix: prefix}, nil
}

func (c *RedisConversationCache) HistoryKey(roomID string, afterSeq int64, limit int) string {
	return fmt.Sprintf("%s:history:%s:%d:%d", c.prefix, roomID, afterSeq, limit)
}

func (c *RedisConversationCache) historySetKey(roomID string) string {
	return fmt.Sprintf("%s:history_keys:%s", c.prefix, roomID)
}

func (c *RedisConversationCache) conversationsKey(userID string) string {
	return fmt.Sprintf("%s:conversations:%s", c.prefix, userID)
}

func (c *RedisConversationCache) GetHistory(ctx context.Context, key string) (*domain.MessagePage, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var page domain.MessagePage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached page: %w", err)
	}
	return &page, nil
}

func (c *RedisConversationCache) SetHistory(ctx context.Context, roomID, key string, page *domain.MessagePage, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}

	// Every page key joins the room's set, empty pages included, so the
	// next append invalidates them all.
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, c.historySetKey(roomID), key)
	pipe.Expire(ctx, c.historySetKey(roomID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisConversationCache) GetConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	data, err := c.client.Get(ctx, c.conversationsKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var summaries []domain.ConversationSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached conversations: %w", err)
	}
	return summaries, nil
}

func (c *RedisConversationCache) SetConversations(ctx context.Context, userID string, summaries []domain.ConversationSummary, ttl time.Duration) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	if err := c.client.Set(ctx, c.conversationsKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisConversationCache) InvalidateRoom(ctx context.Context, roomID string, participants [2]string) error {
	setKey := c.historySetKey(roomID)
	pageKeys, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read history key set: %w", err)
	}

	keys := append(pageKeys, setKey,
		c.conversationsKey(participants[0]),
		c.conversationsKey(participants[1]),
	)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate room keys: %w", err)
	}
	return nil
}

func (c *RedisConversationCache) Close() error {
	return c.client.Close()
}
