// Package renderer hosts the form renderer the session talks to. Host runs
// the real forms engine in a headless browser; Replay derives the discovery
// messages from the schema alone.
package renderer

import (
	"context"
	"fmt"

	"github.com/mwantia/fieldsync/pkg/schema"
)

// Renderer receives a normalized schema and emits the raw bridge posts of
// the loaded form, in order, on Messages.
type Renderer interface {
	Inject(ctx context.Context, doc schema.Document) error
	Messages() <-chan []byte
	Close() error
}

// InitError reports a renderer that could not be brought up. A session
// cannot continue past it.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("renderer: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("renderer: %s", e.Reason)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
