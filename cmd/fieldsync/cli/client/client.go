package client

import (
	"fmt"
	"io"

	"github.com/mwantia/fieldsync/internal/agent"
	config "github.com/mwantia/fieldsync/internal/config/server"
)

func newAgent() (*agent.FieldSyncAgent, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return agent.NewAgent(cfg), nil
}

// writerReporter prints session reports for the user.
type writerReporter struct {
	out io.Writer
}

func (r writerReporter) Report(recordID, message string) {
	fmt.Fprintf(r.out, "[%s] %s\n", recordID, message)
}
