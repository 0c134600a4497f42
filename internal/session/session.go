// Package session runs one form attachment session: it loads a schema into
// the renderer, tracks the discovered file fields and reconciles the upload
// queue once the user submits or saves a draft.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/db/models"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/mwantia/fieldsync/pkg/handoff"
	"github.com/mwantia/fieldsync/pkg/log"
	"github.com/mwantia/fieldsync/pkg/registry"
	"github.com/mwantia/fieldsync/pkg/schema"
	"gorm.io/datatypes"
)

var (
	ErrNotLoaded = errors.New("session: schema not loaded")
	ErrClosed    = errors.New("session: terminal message already processed")
)

// Injector hands the normalized schema to the renderer.
type Injector interface {
	Inject(ctx context.Context, doc schema.Document) error
}

// Reporter surfaces messages to the user. It receives renderer error
// messages and, once per reconciliation, the aggregated storage failures.
type Reporter interface {
	Report(recordID, message string)
}

type Options struct {
	RecordID    string
	Schema      schema.Document
	DateFormats []schema.DateFormat
	// Prior is the submission the record was last saved with. Nil for a new
	// record.
	Prior *bridge.Submission

	Store     store.QueueStore
	Publisher handoff.Publisher
	Reporter  Reporter
	Logger    log.LoggerService
}

// Result describes the session after one handled message.
type Result struct {
	State   State
	Kind    bridge.Kind
	Handoff *handoff.Handoff
	Report  registry.WriteReport
}

type Session struct {
	mutex sync.Mutex

	opts    Options
	state   State
	log     log.LoggerService
	writer  *registry.Writer
	tracker *registry.Tracker
}

func New(opts Options) (*Session, error) {
	if opts.RecordID == "" {
		return nil, fmt.Errorf("session: record id is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("session: logger is required")
	}

	logger := opts.Logger.Named("session")
	if opts.Publisher == nil {
		opts.Publisher = handoff.NewLogPublisher(logger)
	}
	if opts.Reporter == nil {
		opts.Reporter = &logReporter{log: logger}
	}

	writer := registry.NewWriter(opts.Store, logger.Named("registry"))

	return &Session{
		opts:    opts,
		state:   Idle,
		log:     logger,
		writer:  writer,
		tracker: registry.NewTracker(opts.RecordID, opts.Prior, writer, logger.Named("tracker")),
	}, nil
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.state
}

// Load normalizes the schema and injects it into the renderer. An injection
// failure is fatal: the session stays idle and cannot receive messages.
func (s *Session) Load(ctx context.Context, injector Injector) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != Idle {
		return fmt.Errorf("session: schema already loaded")
	}

	doc, err := schema.Normalize(s.opts.Schema, s.opts.DateFormats)
	if err != nil {
		return fmt.Errorf("failed to normalize schema: %w", err)
	}

	if err := injector.Inject(ctx, doc); err != nil {
		return fmt.Errorf("failed to inject schema: %w", err)
	}

	s.state = SchemaLoaded
	s.log.Debug("Loaded schema for record '%s'", s.opts.RecordID)
	return nil
}

// Handle processes one raw bridge post. Posts that cannot be decoded are
// logged and dropped without changing the state. Error messages reach the
// Reporter in every state and never change it.
func (s *Session) Handle(ctx context.Context, raw []byte) (*Result, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	msg, decodeErr := bridge.Decode(raw)
	if decodeErr == nil && msg.Kind == bridge.KindError {
		s.opts.Reporter.Report(s.opts.RecordID, msg.Text)
		return &Result{State: s.state, Kind: msg.Kind}, nil
	}

	switch {
	case s.state == Idle:
		return nil, ErrNotLoaded
	case s.state.Finished():
		return nil, ErrClosed
	}

	if decodeErr != nil {
		s.log.Warn("Dropped message for record '%s': %v", s.opts.RecordID, decodeErr)
		return &Result{State: s.state}, nil
	}

	result := &Result{Kind: msg.Kind}

	switch msg.Kind {
	case bridge.KindDebug:
		s.log.Debug("Renderer: %s", msg.Text)
	case bridge.KindDatagrid:
		s.discovered()
		s.tracker.OnDatagrid(*msg.Grid)
	case bridge.KindComponent:
		s.discovered()
		_, report := s.tracker.OnComponent(ctx, *msg.Field)
		if err := report.Err(); err != nil {
			s.log.Warn("Failed to register field '%s': %v", msg.Field.Key, err)
		}
		result.Report = report
	case bridge.KindChange:
		s.discovered()
		s.log.Debug("Renderer changed %d field(s)", len(msg.Data))
	case bridge.KindSubmit, bridge.KindDraft:
		s.reconcile(ctx, msg, result)
	}

	result.State = s.state
	return result, nil
}

func (s *Session) discovered() {
	if s.state == SchemaLoaded {
		s.state = AwaitingTerminalMessage
	}
}

// Run feeds messages to Handle until a terminal message was processed, the
// channel is closed or ctx is done. It returns the result of the terminal
// message, or nil if none arrived.
func (s *Session) Run(ctx context.Context, messages <-chan []byte) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case raw, ok := <-messages:
			if !ok {
				return nil, nil
			}
			result, err := s.Handle(ctx, raw)
			if err != nil {
				return nil, err
			}
			if result.State.Finished() {
				return result, nil
			}
		}
	}
}

func (s *Session) reconcile(ctx context.Context, msg bridge.Message, result *Result) {
	s.state = Reconciling

	recordID := s.opts.RecordID
	sub := msg.Submission
	report := &result.Report

	grids := s.tracker.Grids()
	added := registry.DiffGrids(s.opts.Prior, sub, grids)
	for _, grid := range grids {
		if s.tracker.DropOther(grid.GridComponents) > 0 {
			report.Merge(s.writer.PurgeEmpty(ctx, recordID, grid.GridComponents))
		}
	}

	for _, desc := range added {
		_, r := s.writer.Persist(ctx, recordID, desc, desc.Files)
		report.Merge(r)
	}

	for _, desc := range s.tracker.Pending() {
		decision, err := registry.Evaluate(desc, sub.Data)
		if err != nil {
			s.log.Warn("Purging '%s': %v", desc.Key, err)
		}

		switch decision {
		case registry.Persist:
			files := bridge.FilesAt(sub.Data, desc.Key)
			created, r := s.writer.Persist(ctx, recordID, desc, files)
			report.Merge(r)
			if !created && len(r.Failures) == 0 {
				report.Merge(s.writer.Append(ctx, recordID, desc.Key, files))
			}
		default:
			report.Merge(s.writer.Purge(ctx, recordID, desc.Key))
		}
	}

	for _, desc := range s.tracker.Others() {
		report.Merge(s.writer.Append(ctx, recordID, desc.Key, bridge.FilesAt(sub.Data, desc.Key)))
	}

	draft := msg.Kind == bridge.KindDraft
	snapshot, err := s.snapshot(ctx, sub, draft)
	if err != nil {
		report.Failures = append(report.Failures, &registry.StorageWriteError{
			Op: "snapshot", RecordID: recordID, Err: err,
		})
	}

	s.state = Persisted
	s.log.Info("Reconciled record '%s': %d descriptor(s), %d file(s), %d purged",
		recordID, report.Descriptors, report.Files, report.Purged)

	if err := report.Err(); err != nil {
		s.log.Error("Reconciliation of record '%s' finished with %d failure(s): %v", recordID, len(report.Failures), err)
		s.opts.Reporter.Report(recordID, fmt.Sprintf("%d attachment(s) could not be queued", len(report.Failures)))
	}

	h, err := s.pendingHandoff(ctx, snapshot, draft)
	if err != nil {
		s.log.Error("Failed to read upload queue for record '%s': %v", recordID, err)
		s.state = Done
		return
	}
	if h == nil {
		s.state = Done
		return
	}

	if err := s.opts.Publisher.Publish(ctx, h); err != nil {
		s.log.Error("Failed to publish handoff for record '%s': %v", recordID, err)
		s.opts.Reporter.Report(recordID, "queued attachments could not be handed to the upload service")
	}
	result.Handoff = h
	s.state = HandoffToUpload
}

// snapshot stores the submission so the next session of the record can diff
// against it.
func (s *Session) snapshot(ctx context.Context, sub *bridge.Submission, draft bool) (json.RawMessage, error) {
	data, err := json.Marshal(sub.Data)
	if err != nil {
		return nil, err
	}

	err = s.opts.Store.CreateSubmission(ctx, &models.Submission{
		RecordID: s.opts.RecordID,
		Draft:    draft,
		Data:     datatypes.JSON(data),
	})
	return data, err
}

// pendingHandoff builds the handoff from every stored descriptor of the
// record that has queued files, or returns nil when there is none.
func (s *Session) pendingHandoff(ctx context.Context, submission json.RawMessage, draft bool) (*handoff.Handoff, error) {
	stored, err := s.opts.Store.ListDescriptors(ctx, s.opts.RecordID)
	if err != nil {
		return nil, err
	}

	var outstanding []registry.FieldDescriptor
	for _, m := range stored {
		if len(m.Files) == 0 {
			continue
		}
		outstanding = append(outstanding, registry.FromModel(m))
	}
	if len(outstanding) == 0 {
		return nil, nil
	}

	return &handoff.Handoff{
		RecordID:    s.opts.RecordID,
		Draft:       draft,
		Submission:  submission,
		Descriptors: outstanding,
	}, nil
}

// PriorSubmission returns the latest stored submission of recordID, or nil
// when the record was never saved.
func PriorSubmission(ctx context.Context, s store.QueueStore, recordID string) (*bridge.Submission, error) {
	latest, err := s.LatestSubmission(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prior submission: %w", err)
	}
	return bridge.ParseSubmission(latest.Data)
}

type logReporter struct {
	log log.LoggerService
}

func (r *logReporter) Report(recordID, message string) {
	r.log.Error("Record '%s': %s", recordID, message)
}
