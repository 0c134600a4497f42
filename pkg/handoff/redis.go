package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 72 * time.Hour

// ErrNotFound is returned by Lookup when no handoff is stored for a record.
var ErrNotFound = errors.New("handoff not found or expired")

// RedisPublisher pushes each handoff onto a list consumed by the upload
// service and keeps the latest handoff per record under its own key.
type RedisPublisher struct {
	client *redis.Client
	queue  string
	prefix string
	ttl    time.Duration
}

func NewRedisPublisher(ctx context.Context, cfg config.HandoffRedisConfig) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, cfg), nil
}

func NewRedisPublisherWithClient(client *redis.Client, cfg config.HandoffRedisConfig) *RedisPublisher {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil || ttl <= 0 {
		ttl = defaultTTL
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "fieldsync:uploads"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fieldsync:handoff:"
	}

	return &RedisPublisher{
		client: client,
		queue:  queue,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (p *RedisPublisher) key(recordID string) string {
	return p.prefix + recordID
}

func (p *RedisPublisher) Publish(ctx context.Context, h *Handoff) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key(h.RecordID), payload, p.ttl)
		pipe.LPush(ctx, p.queue, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish handoff for '%s': %w", h.RecordID, err)
	}

	return nil
}

// Lookup returns the latest handoff stored for recordID.
func (p *RedisPublisher) Lookup(ctx context.Context, recordID string) (*Handoff, error) {
	payload, err := p.client.Get(ctx, p.key(recordID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup handoff: %w", err)
	}

	var h Handoff
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("unmarshal handoff: %w", err)
	}
	return &h, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
