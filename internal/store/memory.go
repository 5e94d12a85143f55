// Package store holds the event snapshot implementations used by the engine.
package store

import (
	"context"
	"sync"

	"calwatch/internal/models"
)

type key struct {
	group string
	uid   string
}

// Memory is an in-process store. It is used for dry runs and tests.
type Memory struct {
	mu     sync.RWMutex
	events map[key]*models.Event
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{events: make(map[key]*models.Event)}
}

func (m *Memory) FindByKey(ctx context.Context, group, uid string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.events[key{group, uid}]; ok {
		return e.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (m *Memory) FindAllByGroup(ctx context.Context, group string) ([]*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Event
	for k, e := range m.events {
		if k.group == group {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *Memory) Upsert(ctx context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[key{event.Group, event.UID}] = event.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{event.Group, event.UID}
	if _, ok := m.events[k]; !ok {
		return models.ErrNotFound
	}
	delete(m.events, k)
	return nil
}

// GroupReader lists the records of one group.
type GroupReader interface {
	FindAllByGroup(ctx context.Context, group string) ([]*models.Event, error)
}

// Copy loads every record of group from src into m.
func (m *Memory) Copy(ctx context.Context, src GroupReader, group string) error {
	events, err := src.FindAllByGroup(ctx, group)
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := m.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
