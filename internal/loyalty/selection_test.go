package loyalty_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/loyalty"
)

func newSelectionStore(t *testing.T) loyalty.SelectionStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return loyalty.SelectionStore{R: client, Prefix: "test", TTL: time.Hour}
}

func TestSelectionRoundTrip(t *testing.T) {
	store := newSelectionStore(t)
	ctx := context.Background()

	_, found, err := store.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Save(ctx, "cust-1", 9996))

	coins, found, err := store.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(9996), coins)

	require.NoError(t, store.Clear(ctx, "cust-1"))
	_, found, err = store.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSelectionNegativeStoredAsZero(t *testing.T) {
	store := newSelectionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cust-2", -10))
	coins, found, err := store.Load(ctx, "cust-2")
	require.NoError(t, err)
	require.True(t, found)
	require.Zero(t, coins)
}

func TestSelectionRequiresCustomerID(t *testing.T) {
	store := newSelectionStore(t)
	require.Error(t, store.Save(context.Background(), " ", 1))
}
