// Package engine reconciles the events of one feed against the snapshot kept
// in a store and reports what was created, updated or deleted.
package engine

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"calwatch/internal/models"
)

// Store is the persistence port the engine reads and mutates.
// FindByKey returns models.ErrNotFound when no record matches.
type Store interface {
	FindByKey(ctx context.Context, group, uid string) (*models.Event, error)
	FindAllByGroup(ctx context.Context, group string) ([]*models.Event, error)
	Upsert(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, event *models.Event) error
}

// Notifier delivers one change notification.
type Notifier interface {
	Notify(ctx context.Context, change models.Change) error
}

// Engine computes and applies the changes between a feed and the store.
// It holds no lock: callers must not run two passes for the same group at
// once.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// New creates an Engine. notifier may be nil, in which case changes are only
// returned.
func New(logger *slog.Logger, store Store, notifier Notifier) *Engine {
	return &Engine{store: store, notifier: notifier, logger: logger}
}

// Reconcile brings the stored snapshot of group in line with events and
// returns the changes in the order they were applied: creates and updates
// by ascending begin time, then deletes by ascending begin time.
//
// An empty event set, after filtering, changes nothing. Each mutation is
// committed on its own; on a store failure the pass stops and the changes
// applied so far are returned with the error. Delivery failures are logged
// and do not stop the pass.
func (e *Engine) Reconcile(ctx context.Context, group string, events []models.Event, filter Filter) ([]models.Change, error) {
	incoming := e.prepare(group, events, filter)
	if len(incoming) == 0 {
		e.logger.Info("No events to reconcile, leaving store untouched.", "group", group, "fetched", len(events))
		return nil, nil
	}

	var changes []models.Change
	present := make(map[string]struct{}, len(incoming))
	for _, event := range incoming {
		present[event.UID] = struct{}{}

		change, changed, err := e.upsert(ctx, event)
		if err != nil {
			return changes, err
		}
		if changed {
			changes = append(changes, change)
			e.emit(ctx, change)
		}
	}

	stored, err := e.store.FindAllByGroup(ctx, group)
	if err != nil {
		return changes, storeError("find all", err)
	}

	var stale []*models.Event
	for _, record := range stored {
		if _, ok := present[record.UID]; !ok {
			stale = append(stale, record)
		}
	}
	sortEvents(stale)

	for _, record := range stale {
		if err := e.store.Delete(ctx, record); err != nil {
			return changes, storeError("delete", err)
		}
		e.logger.Info("Event has been deleted.", "group", group, "uid", record.UID, "name", record.Name)
		change := models.Change{Kind: models.Deleted, Record: *record}
		changes = append(changes, change)
		e.emit(ctx, change)
	}

	e.logger.Info("Events reconciled.", "group", group, "incoming", len(incoming), "changes", len(changes))
	return changes, nil
}

// upsert creates or updates the record for event. It reports false when the
// stored record already matches.
func (e *Engine) upsert(ctx context.Context, event *models.Event) (models.Change, bool, error) {
	e.logger.Debug("Checking event.", "uid", event.UID, "name", event.Name)

	record, err := e.store.FindByKey(ctx, event.Group, event.UID)
	if errors.Is(err, models.ErrNotFound) {
		if err := e.store.Upsert(ctx, event); err != nil {
			return models.Change{}, false, storeError("create", err)
		}
		e.logger.Info("Event has been added.", "group", event.Group, "uid", event.UID, "name", event.Name)
		return models.Change{Kind: models.Created, Record: *event}, true, nil
	}
	if err != nil {
		return models.Change{}, false, storeError("find", err)
	}

	diff := Diff(event, record)
	if len(diff) == 0 {
		return models.Change{}, false, nil
	}

	record.Apply(event)
	if err := e.store.Upsert(ctx, record); err != nil {
		return models.Change{}, false, storeError("update", err)
	}
	e.logger.Info("Event has been updated.", "group", event.Group, "uid", event.UID, "name", event.Name, "fields", len(diff))
	return models.Change{Kind: models.Updated, Record: *record, Diff: diff}, true, nil
}

func (e *Engine) emit(ctx context.Context, change models.Change) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, change); err != nil {
		e.logger.Error("Failed to deliver notification", "kind", change.Kind.String(), "uid", change.Record.UID, "error", err)
	}
}

// prepare copies the events that pass filter, tags them with group, sorts
// them and drops repeated UIDs, keeping the first.
func (e *Engine) prepare(group string, events []models.Event, filter Filter) []*models.Event {
	out := make([]*models.Event, 0, len(events))
	for i := range events {
		event := events[i].Clone()
		event.Group = group
		if filter != nil && !filter(event) {
			e.logger.Debug("Event filtered out.", "uid", event.UID, "name", event.Name)
			continue
		}
		out = append(out, event)
	}
	sortEvents(out)

	seen := make(map[string]struct{}, len(out))
	unique := out[:0]
	for _, event := range out {
		if _, dup := seen[event.UID]; dup {
			e.logger.Warn("Duplicate UID in feed, skipping.", "group", group, "uid", event.UID, "name", event.Name)
			continue
		}
		seen[event.UID] = struct{}{}
		unique = append(unique, event)
	}
	return unique
}

func sortEvents(events []*models.Event) {
	slices.SortStableFunc(events, func(a, b *models.Event) int {
		if c := a.Begin.Compare(b.Begin); c != 0 {
			return c
		}
		return cmp.Compare(a.UID, b.UID)
	})
}

func storeError(op string, err error) error {
	var se *models.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &models.StoreError{Op: op, Err: err}
}
