package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-steps/pkg/steps/store"
)

func TestRedisKeyPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	st := store.NewRedis(client, store.WithPrefix("experiment1"))
	require.NoError(t, st.Put(ctx, store.Key{Step: "model", Fingerprint: "fp1"}, newEntry("fp1")))

	assert.True(t, srv.Exists("experiment1:model"))

	// A store with a different prefix shares the server without seeing the
	// entry.
	other := store.NewRedis(client, store.WithPrefix("experiment2"))

	_, err := other.Head(ctx, "model")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisCorruptEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	st := store.NewRedis(client)

	type testCase struct {
		fields map[string]string
	}

	allCases := map[string]testCase{
		"bad created_at": {
			fields: map[string]string{
				"fingerprint": "fp1",
				"created_at":  "yesterday",
				"state":       "state",
			},
		},
		"missing fingerprint": {
			fields: map[string]string{
				"created_at": "1700000000000000000",
				"state":      "state",
			},
		},
	}

	for name, tc := range allCases {
		tc := tc

		t.Run(name, func(t *testing.T) {
			require.NoError(t, client.Del(ctx, "steps:model").Err())

			for field, value := range tc.fields {
				require.NoError(t, client.HSet(ctx, "steps:model", field, value).Err())
			}

			var corrupt *store.CorruptionError

			_, err := st.Head(ctx, "model")
			require.Error(t, err)
			assert.ErrorAs(t, err, &corrupt)
			assert.Equal(t, "model", corrupt.Step)
		})
	}
}
