// Package handoff passes reconciled records on to the deferred upload
// service.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/log"
	"github.com/mwantia/fieldsync/pkg/registry"
)

// Handoff is the payload sent once a record holds queued attachments.
type Handoff struct {
	RecordID    string                     `json:"recordId"`
	Draft       bool                       `json:"draft"`
	Submission  json.RawMessage            `json:"submission"`
	Descriptors []registry.FieldDescriptor `json:"descriptors"`
	CreatedAt   time.Time                  `json:"createdAt"`
}

// Files returns the number of queued attachments over all descriptors.
func (h *Handoff) Files() int {
	n := 0
	for _, d := range h.Descriptors {
		n += len(d.Files)
	}
	return n
}

type Publisher interface {
	Publish(ctx context.Context, h *Handoff) error
	Close() error
}

// New builds the publisher selected by cfg.Type.
func New(ctx context.Context, cfg config.HandoffServerConfig, logger log.LoggerService) (Publisher, error) {
	switch cfg.Type {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "redis":
		return NewRedisPublisher(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported handoff type %q", cfg.Type)
	}
}

// LogPublisher only logs the handoff. It is used when no broker is set up
// and the upload service polls the record store itself.
type LogPublisher struct {
	log log.LoggerService
}

func NewLogPublisher(logger log.LoggerService) *LogPublisher {
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(_ context.Context, h *Handoff) error {
	p.log.Info("Record '%s' ready for upload: %d descriptor(s), %d file(s), draft=%t",
		h.RecordID, len(h.Descriptors), h.Files(), h.Draft)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
