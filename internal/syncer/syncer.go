package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calwatch/internal/engine"
	"calwatch/internal/feed"
	"calwatch/internal/models"

	"github.com/robfig/cron/v3"
)

// Reconciler applies one fetched event set to the store.
type Reconciler interface {
	Reconcile(ctx context.Context, group string, events []models.Event, filter engine.Filter) ([]models.Change, error)
}

// Options configures a Syncer.
type Options struct {
	Group       string
	FeedURL     string        // cache key for the feed
	Filter      engine.Filter // nil accepts every event
	CacheWindow time.Duration // 0 disables the fetch cache
}

// Syncer runs reconciliation passes for one feed and one group.
type Syncer struct {
	logger     *slog.Logger
	source     feed.Source
	reconciler Reconciler
	cache      *feed.Cache
	opts       Options
	now        func() time.Time
}

// NewSyncer creates a new Syncer. It owns the fetch cache.
func NewSyncer(logger *slog.Logger, source feed.Source, reconciler Reconciler, opts Options) *Syncer {
	return &Syncer{
		logger:     logger,
		source:     source,
		reconciler: reconciler,
		cache:      feed.NewCache(),
		opts:       opts,
		now:        time.Now,
	}
}

// Sync performs one full pass: fetch the feed, then reconcile it. A fetch
// failure leaves the store untouched.
func (s *Syncer) Sync(ctx context.Context) error {
	s.logger.Info("Checking events for group", "group", s.opts.Group)

	bucket := feed.BucketKey(s.now(), s.opts.CacheWindow)
	events, cached, err := s.cache.Get(ctx, s.opts.FeedURL, bucket, s.source.Fetch)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}
	s.logger.Info("Events fetched", "count", len(events), "cached", cached)

	changes, err := s.reconciler.Reconcile(ctx, s.opts.Group, events, s.opts.Filter)
	if err != nil {
		return fmt.Errorf("reconciliation stopped after %d changes: %w", len(changes), err)
	}

	var created, updated, deleted int
	for _, c := range changes {
		switch c.Kind {
		case models.Created:
			created++
		case models.Updated:
			updated++
		case models.Deleted:
			deleted++
		}
	}
	s.logger.Info("Events checked", "group", s.opts.Group, "created", created, "updated", updated, "deleted", deleted)
	return nil
}

// Run performs a pass immediately and then one per interval until ctx is
// cancelled. A pass that is still running when the next one is due causes
// that one to be skipped. Failed or panicking passes are logged and never
// stop the loop.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	logger := cronLogger{logger: s.logger}
	job := cron.NewChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	).Then(cron.FuncJob(func() { s.pass(ctx) }))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(cron.Every(interval), job)

	s.logger.Info("Starting watcher.", "interval", interval)
	job.Run()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Watcher stopped.")
	return nil
}

func (s *Syncer) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("Sync cycle failed", "kind", errorKind(err), "error", err)
	}
}

func errorKind(err error) string {
	var fe *models.FetchError
	var se *models.StoreError
	switch {
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &se):
		return "store"
	default:
		return "unknown"
	}
}

// cronLogger forwards scheduler logs to slog. Routine scheduler chatter is
// logged at debug level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Warn("Previous sync still running, skipping this one.")
		return
	}
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
