package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Memory keeps entries in process memory. It is the default store, suited to
// tests and throwaway runs; nothing survives a restart.
type Memory struct {
	lock    sync.RWMutex
	entries map[string]*Entry
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
	}
}

func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	entry, ok := m.entries[key.Step]
	if !ok || entry.Fingerprint != key.Fingerprint {
		return nil, errors.Wrap(ErrNotFound, key.Step)
	}

	return entry.clone(), nil
}

func (m *Memory) Head(_ context.Context, step string) (*Entry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	entry, ok := m.entries[step]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, step)
	}

	return entry.clone(), nil
}

func (m *Memory) Put(_ context.Context, key Key, entry *Entry) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.entries[key.Step] = entry.clone()

	return nil
}

func (m *Memory) Invalidate(_ context.Context, step string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.entries, step)

	return nil
}

var _ Store = (*Memory)(nil)
