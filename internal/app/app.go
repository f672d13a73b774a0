// Package app wires fixtures, the store and the activity journal together.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"workplace/internal/config"
	"workplace/internal/journal"
	"workplace/internal/store"
)

// App is a bootstrapped workspace.
type App struct {
	Settings config.Settings
	Store    *store.Store
	Journal  *journal.Journal
	Log      *zap.Logger

	detach func()
}

type Option func(*options)

type options struct {
	now       func() time.Time
	storeOpts []store.Option
	fixtures  *config.Fixtures
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFixtures replaces the fixtures named by seed.file.
func WithFixtures(f *config.Fixtures) Option {
	return func(o *options) { o.fixtures = f }
}

func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

// SnapshotFromSeed converts resolved fixtures into the store's initial state.
func SnapshotFromSeed(seed config.Seed) store.Snapshot {
	return store.Snapshot{
		Models:      seed.Models,
		Tasks:       seed.Tasks,
		Automations: seed.Automations,
		Activity:    seed.Activity,
	}
}

// Bootstrap loads fixtures, builds the store and attaches the journal.
func Bootstrap(settings config.Settings, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}
	fixtures := o.fixtures
	if fixtures == nil {
		var err error
		fixtures, err = config.LoadFixtures(settings.Seed.File)
		if err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
	}
	seed := fixtures.Resolve(o.now())

	storeOpts := append([]store.Option{
		store.WithClock(o.now),
		store.WithLogger(log.Named("store")),
	}, o.storeOpts...)
	s := store.New(SnapshotFromSeed(seed), storeOpts...)

	j, err := journal.Open(settings.Journal.DSN, log.Named("journal"))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	detach, err := j.Attach(s)
	if err != nil {
		j.Close()
		return nil, fmt.Errorf("attach journal: %w", err)
	}
	log.Info("workspace ready",
		zap.Int("models", len(seed.Models)),
		zap.Int("tasks", len(seed.Tasks)),
		zap.Int("automations", len(seed.Automations)),
		zap.Int("activity", len(seed.Activity)),
	)
	return &App{Settings: settings, Store: s, Journal: j, Log: log, detach: detach}, nil
}

// Close detaches and closes the journal.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
	}
	return a.Journal.Close()
}
