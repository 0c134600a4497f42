package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/log"
	"github.com/mwantia/fieldsync/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisPublisherWithClient(client, config.HandoffRedisConfig{
		Queue:  "uploads",
		Prefix: "handoff:",
		TTL:    "1h",
	}), mr
}

func sample() *Handoff {
	return &Handoff{
		RecordID:   "rec-1",
		Submission: json.RawMessage(`{"photo":[]}`),
		Descriptors: []registry.FieldDescriptor{
			{ID: "d-1", Key: "photo", Files: []bridge.FileRef{{Name: "a.jpg", URL: "https://files/a.jpg"}}},
			{ID: "d-2", Key: "scan", GridKey: "docs", IsDataGrid: true},
		},
	}
}

func TestRedisPublisherPublish(t *testing.T) {
	p, mr := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, sample()))

	items, err := mr.List("uploads")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var queued Handoff
	require.NoError(t, json.Unmarshal([]byte(items[0]), &queued))
	assert.Equal(t, "rec-1", queued.RecordID)
	assert.Equal(t, 1, queued.Files())
	assert.JSONEq(t, `{"photo":[]}`, string(queued.Submission))

	assert.True(t, mr.Exists("handoff:rec-1"))
	assert.Equal(t, time.Hour, mr.TTL("handoff:rec-1"))

	got, err := p.Lookup(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, queued.Descriptors, got.Descriptors)
}

func TestRedisPublisherLookupExpired(t *testing.T) {
	p, mr := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, sample()))
	mr.FastForward(2 * time.Hour)

	_, err := p.Lookup(ctx, "rec-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisPublisherUnreachable(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), config.HandoffRedisConfig{URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewSelectsPublisher(t *testing.T) {
	logger := log.NewLoggerServiceWithWriter("test", config.LogServerConfig{}, &bytes.Buffer{})
	ctx := context.Background()

	p, err := New(ctx, config.HandoffServerConfig{Type: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)

	mr := miniredis.RunT(t)
	p, err = New(ctx, config.HandoffServerConfig{Type: "redis", Redis: config.HandoffRedisConfig{URL: "redis://" + mr.Addr()}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)
	assert.NoError(t, p.Close())

	_, err = New(ctx, config.HandoffServerConfig{Type: "kafka"}, logger)
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(log.NewLoggerServiceWithWriter("test", config.LogServerConfig{}, &buf))

	require.NoError(t, p.Publish(context.Background(), sample()))
	assert.Contains(t, buf.String(), "Record 'rec-1' ready for upload: 2 descriptor(s), 1 file(s)")
}
