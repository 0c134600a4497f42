package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/mwantia/fieldsync/pkg/handoff"
	"github.com/mwantia/fieldsync/pkg/log"
	"gorm.io/gorm/logger"
)

type FieldSyncAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup
	ready bool

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService
}

func NewAgent(cfg *config.BaseServerConfig) *FieldSyncAgent {
	return &FieldSyncAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("fieldsync", cfg.Log),
	}
}

func (fsa *FieldSyncAgent) Config() *config.BaseServerConfig {
	return fsa.cfg
}

func (fsa *FieldSyncAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	fsa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](fsa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(fsa.log)))

	queue, err := fsa.openStore(ctx)
	if err != nil {
		return err
	}

	fsa.log.Debug("Registering 'QueueStore'...")
	errs.Add(container.Register[store.SQLiteStore](fsa.sc,
		container.With[store.QueueStore](),
		container.WithInstance(queue)))

	publisher, err := handoff.New(ctx, fsa.cfg.Handoff, fsa.log.Named("handoff"))
	if err != nil {
		_ = queue.Close()
		return fmt.Errorf("failed to create handoff publisher: %w", err)
	}

	fsa.log.Debug("Registering 'Publisher' (%s)...", fsa.cfg.Handoff.Type)
	errs.Add(container.Register[handoff.Publisher](fsa.sc,
		container.With[handoff.Publisher](),
		container.WithInstance(publisher)))

	return errs.Errors()
}

func (fsa *FieldSyncAgent) openStore(ctx context.Context) (*store.SQLiteStore, error) {
	level := logger.Silent
	if fsa.cfg.Metadata.SQLite.Verbose {
		level = logger.Info
	}

	queue, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:     fsa.cfg.Metadata.SQLite.Path,
		LogLevel: level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	if err := queue.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect record store: %w", err)
	}
	if err := queue.Migrate(ctx); err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("failed to migrate record store: %w", err)
	}

	return queue, nil
}

// Start registers all services. It is safe to call more than once.
func (fsa *FieldSyncAgent) Start(ctx context.Context) error {
	fsa.mutex.Lock()
	defer fsa.mutex.Unlock()

	if fsa.ready {
		return nil
	}
	if err := fsa.setupServices(ctx); err != nil {
		return err
	}

	fsa.ready = true
	return nil
}

// Store resolves the registered record store.
func (fsa *FieldSyncAgent) Store(ctx context.Context) (store.QueueStore, error) {
	ok, resolved := fsa.sc.ResolveByType(ctx, reflect.TypeOf((*store.QueueStore)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("no record store registered")
	}
	queue, ok := resolved.(store.QueueStore)
	if !ok {
		return nil, fmt.Errorf("resolved service %T is not a QueueStore", resolved)
	}
	return queue, nil
}

// Publisher resolves the registered handoff publisher.
func (fsa *FieldSyncAgent) Publisher(ctx context.Context) (handoff.Publisher, error) {
	ok, resolved := fsa.sc.ResolveByType(ctx, reflect.TypeOf((*handoff.Publisher)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("no handoff publisher registered")
	}
	publisher, ok := resolved.(handoff.Publisher)
	if !ok {
		return nil, fmt.Errorf("resolved service %T is not a Publisher", resolved)
	}
	return publisher, nil
}

func (fsa *FieldSyncAgent) Logger(ctx context.Context, name string) (log.LoggerService, error) {
	return log.FromContainer(ctx, fsa.sc, name)
}

// Go runs fn in the background. Shutdown waits for it to return.
func (fsa *FieldSyncAgent) Go(fn func()) {
	fsa.wait.Add(1)
	go func() {
		defer fsa.wait.Done()
		fn()
	}()
}

// Serve starts all services and blocks until ctx is done or an interrupt is
// received.
func (fsa *FieldSyncAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := fsa.Start(ctx); err != nil {
		return err
	}

	queue, err := fsa.Store(ctx)
	if err != nil {
		return err
	}
	fsa.Go(func() { fsa.watchHealth(ctx, queue) })

	fsa.log.Info("Agent ready, record store at '%s'", fsa.cfg.Metadata.SQLite.Path)
	<-ctx.Done()

	return fsa.Shutdown()
}

func (fsa *FieldSyncAgent) watchHealth(ctx context.Context, queue store.QueueStore) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := queue.Health(ctx); err != nil && ctx.Err() == nil {
				fsa.log.Warn("Record store health check failed: %v", err)
			}
		}
	}
}

// Shutdown waits for background work, closes the record store and the
// handoff publisher and cleans up the service container.
func (fsa *FieldSyncAgent) Shutdown() error {
	timeout, err := time.ParseDuration(fsa.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fsa.wait.Wait()

	fsa.mutex.Lock()
	defer fsa.mutex.Unlock()

	if fsa.ready {
		if publisher, err := fsa.Publisher(shutdown); err == nil {
			if err := publisher.Close(); err != nil {
				fsa.log.Warn("Failed to close handoff publisher: %v", err)
			}
		}
		if queue, err := fsa.Store(shutdown); err == nil {
			if err := queue.Close(); err != nil {
				fsa.log.Warn("Failed to close record store: %v", err)
			}
		}
		fsa.ready = false
	}

	if err := fsa.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	return nil
}
