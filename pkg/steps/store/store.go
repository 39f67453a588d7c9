// Package store provides the persistence backends for step outputs and
// transformer checkpoints. One entry is kept per step identity; an entry is
// only served for the fingerprint it was computed from.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound reports that a step has no stored entry, or that the stored
// entry does not match the requested fingerprint.
var ErrNotFound = errors.New("no entry for step")

// CorruptionError reports an entry that exists but cannot be read back. The
// engine recovers from it by recomputing, it is never fatal.
type CorruptionError struct {
	Step string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("entry for step %s is corrupt: %v", e.Step, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Key identifies a cache entry: the step that produced it and the
// fingerprint of the inputs it was computed from.
type Key struct {
	Step        string
	Fingerprint string
}

// Entry is what the store keeps per step: the fingerprint it was written
// under, the serialised transformer state (checkpoint) and, depending on the
// step policy, the serialised output.
type Entry struct {
	Fingerprint string
	CreatedAt   time.Time
	State       []byte
	Output      []byte
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}

	cp := *e
	cp.State = append([]byte(nil), e.State...)
	cp.Output = append([]byte(nil), e.Output...)

	return &cp
}

// Store is a durable key-value store for step artifacts. Implementations
// must tolerate concurrent readers; writes must be atomic per step,
// last-writer-wins. Get only returns an entry whose fingerprint matches the
// key; Head returns whatever is stored for a step, which is how checkpoints
// are resumed across runs on different data.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Head(ctx context.Context, step string) (*Entry, error)
	Put(ctx context.Context, key Key, entry *Entry) error
	Invalidate(ctx context.Context, step string) error
}
