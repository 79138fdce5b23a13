package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedTranscript is the value stored per video ID.
type CachedTranscript struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// TranscriptCache is the read-through cache in front of the transcript chain.
type TranscriptCache interface {
	Get(ctx context.Context, videoID string) (*CachedTranscript, bool, error)
	Set(ctx context.Context, videoID string, value *CachedTranscript) error
	Close() error
}

type redisTranscriptCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisTranscriptCache builds a cache with the given addr/password/db.
func NewRedisTranscriptCache(addr, password string, db int, ttl time.Duration, prefix string) (TranscriptCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if prefix == "" {
		prefix = "transcript"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisTranscriptCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisTranscriptCache) key(videoID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, videoID)
}

func (c *redisTranscriptCache) Get(ctx context.Context, videoID string) (*CachedTranscript, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.key(videoID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out CachedTranscript
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (c *redisTranscriptCache) Set(ctx context.Context, videoID string, value *CachedTranscript) error {
	if c == nil || c.client == nil || value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(videoID), data, c.ttl).Err()
}

func (c *redisTranscriptCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
