package agent

import (
	"context"
	"fmt"

	"github.com/mwantia/fieldsync/internal/session"
	"github.com/mwantia/fieldsync/pkg/schema"
)

// NewSession builds a session for recordID from the registered services.
// The record's latest stored submission becomes the prior document.
func (fsa *FieldSyncAgent) NewSession(ctx context.Context, recordID string, doc schema.Document, reporter session.Reporter) (*session.Session, error) {
	if err := fsa.Start(ctx); err != nil {
		return nil, err
	}

	queue, err := fsa.Store(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := fsa.Publisher(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := fsa.Logger(ctx, "")
	if err != nil {
		return nil, err
	}

	prior, err := session.PriorSubmission(ctx, queue, recordID)
	if err != nil {
		return nil, err
	}

	s, err := session.New(session.Options{
		RecordID:    recordID,
		Schema:      doc,
		DateFormats: fsa.dateFormats(),
		Prior:       prior,
		Store:       queue,
		Publisher:   publisher,
		Reporter:    reporter,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (fsa *FieldSyncAgent) dateFormats() []schema.DateFormat {
	formats := make([]schema.DateFormat, 0, len(fsa.cfg.Forms.DateFormats))
	for _, df := range fsa.cfg.Forms.DateFormats {
		formats = append(formats, schema.DateFormat{Key: df.Key, Format: df.Format})
	}
	return formats
}
