package renderer

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/schema"
)

// Replay emits the discovery messages of a schema without running the forms
// engine. Further posts, such as a recorded terminal message, are added with
// Post.
type Replay struct {
	mutex    sync.Mutex
	closed   bool
	messages chan []byte
}

func NewReplay(buffer int) *Replay {
	if buffer <= 0 {
		buffer = 64
	}
	return &Replay{messages: make(chan []byte, buffer)}
}

func (r *Replay) Inject(ctx context.Context, doc schema.Document) error {
	for _, msg := range schema.Discover(doc) {
		raw, err := bridge.Encode(msg)
		if err != nil {
			return &InitError{Reason: "encode discovery message", Err: err}
		}
		if err := r.Post(ctx, raw); err != nil {
			return &InitError{Reason: "queue discovery message", Err: err}
		}
	}
	return nil
}

// Post queues one raw bridge post. It fails instead of blocking when the
// buffer is full.
func (r *Replay) Post(ctx context.Context, raw []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return fmt.Errorf("replay closed")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.messages <- raw:
		return nil
	default:
		return fmt.Errorf("replay buffer of %d messages is full", cap(r.messages))
	}
}

func (r *Replay) Messages() <-chan []byte {
	return r.messages
}

func (r *Replay) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.closed {
		r.closed = true
		close(r.messages)
	}
	return nil
}
