package agent

import (
	"context"
	"path/filepath"
	"testing"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/internal/session"
	"github.com/mwantia/fieldsync/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T) *FieldSyncAgent {
	t.Helper()

	cfg := config.GetServerDefault()
	cfg.Log.Level = "ERROR"
	cfg.Log.NoTerminal = true
	cfg.Metadata.SQLite.Path = filepath.Join(t.TempDir(), "fieldsync.db")
	cfg.Forms.DateFormats = []config.DateFormatConfig{{Key: "inspectedAt", Format: "yyyy-MM-dd"}}

	return NewAgent(&cfg)
}

func TestAgentResolvesServices(t *testing.T) {
	a := newTestAgent(t)
	ctx := context.Background()

	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() { _ = a.Shutdown() })

	queue, err := a.Store(ctx)
	require.NoError(t, err)
	assert.NoError(t, queue.Health(ctx))

	_, err = a.Publisher(ctx)
	assert.NoError(t, err)

	_, err = a.Logger(ctx, "test")
	assert.NoError(t, err)
}

func TestAgentNewSession(t *testing.T) {
	a := newTestAgent(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = a.Shutdown() })

	doc, err := schema.Parse([]byte(`{"components":[{"type":"file","key":"photo","label":"Photo"}]}`), schema.FormatJSON)
	require.NoError(t, err)

	s, err := a.NewSession(ctx, "rec-1", doc, nil)
	require.NoError(t, err)
	assert.Equal(t, session.Idle, s.State())

	assert.Equal(t, []schema.DateFormat{{Key: "inspectedAt", Format: "yyyy-MM-dd"}}, a.dateFormats())
}
