package store

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis keeps one hash per step, letting several hosts share a cache. The
// hash is replaced wholesale inside a MULTI/EXEC block, so readers racing a
// writer observe either the previous or the next entry, never a mix.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

type RedisOption func(*Redis)

// WithPrefix overrides the default "steps" key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "steps",
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

const (
	fieldFingerprint = "fingerprint"
	fieldCreatedAt   = "created_at"
	fieldState       = "state"
	fieldOutput      = "output"
)

func (r *Redis) key(step string) string {
	return r.prefix + ":" + step
}

func (r *Redis) Get(ctx context.Context, key Key) (*Entry, error) {
	entry, err := r.Head(ctx, key.Step)
	if err != nil {
		return nil, err
	}

	if entry.Fingerprint != key.Fingerprint {
		return nil, errors.Wrap(ErrNotFound, key.Step)
	}

	return entry, nil
}

func (r *Redis) Head(ctx context.Context, step string) (*Entry, error) {
	fields, err := r.client.HGetAll(ctx, r.key(step)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read entry for step %s", step)
	}

	if len(fields) == 0 {
		return nil, errors.Wrap(ErrNotFound, step)
	}

	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, &CorruptionError{Step: step, Err: err}
	}

	if _, ok := fields[fieldFingerprint]; !ok {
		return nil, &CorruptionError{Step: step, Err: errors.New("missing fingerprint field")}
	}

	entry := &Entry{
		Fingerprint: fields[fieldFingerprint],
		CreatedAt:   time.Unix(0, createdAt),
		State:       []byte(fields[fieldState]),
	}

	if out, ok := fields[fieldOutput]; ok {
		entry.Output = []byte(out)
	}

	return entry, nil
}

func (r *Redis) Put(ctx context.Context, key Key, entry *Entry) error {
	fields := map[string]any{
		fieldFingerprint: entry.Fingerprint,
		fieldCreatedAt:   strconv.FormatInt(entry.CreatedAt.UnixNano(), 10),
		fieldState:       string(entry.State),
	}

	if entry.Output != nil {
		fields[fieldOutput] = string(entry.Output)
	}

	// Delete then set inside one transaction: a plain HSet would leave
	// fields from a previous entry behind.
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(key.Step))
		pipe.HSet(ctx, r.key(key.Step), fields)

		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "unable to write entry for step %s", key.Step)
	}

	return nil
}

func (r *Redis) Invalidate(ctx context.Context, step string) error {
	err := r.client.Del(ctx, r.key(step)).Err()
	if err != nil {
		return errors.Wrapf(err, "unable to remove entry for step %s", step)
	}

	return nil
}

var _ Store = (*Redis)(nil)
