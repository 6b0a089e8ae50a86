package statestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

func TestMemorySetGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemory(clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "item:1", record{Name: "margherita", Qty: 3}, 0))

	var got record
	found, err := store.Get(ctx, "item:1", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, record{Name: "margherita", Qty: 3}, got)

	found, err = store.Get(ctx, "item:missing", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryTTLExpiry(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(time.Unix(0, 0))
	store := NewMemory(fake)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "reservation:1", record{Qty: 2}, 5*time.Minute))

	exists, err := store.Exists(ctx, "reservation:1")
	require.NoError(t, err)
	require.True(t, exists)

	fake.Advance(6 * time.Minute)

	exists, err = store.Exists(ctx, "reservation:1")
	require.NoError(t, err)
	require.False(t, exists, "entry should expire once the TTL elapses")
}

func TestMemoryCounters(t *testing.T) {
	t.Parallel()

	store := NewMemory(clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	value, err := store.Increment(ctx, "stock:pizza", 10)
	require.NoError(t, err)
	require.EqualValues(t, 10, value)

	value, err = store.Decrement(ctx, "stock:pizza", 4)
	require.NoError(t, err)
	require.EqualValues(t, 6, value)

	applied, value, err := store.DecrementFloor(ctx, "stock:pizza", 7)
	require.NoError(t, err)
	require.False(t, applied, "decrement past zero must fail closed")
	require.EqualValues(t, 6, value)

	applied, value, err = store.DecrementFloor(ctx, "stock:pizza", 6)
	require.NoError(t, err)
	require.True(t, applied)
	require.EqualValues(t, 0, value)
}

func TestMemoryDecrementFloorConcurrent(t *testing.T) {
	t.Parallel()

	store := NewMemory(clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	_, err := store.Increment(ctx, "stock:burger", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	appliedCount := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, _, err := store.DecrementFloor(ctx, "stock:burger", 1)
			require.NoError(t, err)
			if applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, appliedCount, "only the available stock may be taken")

	_, value, err := store.DecrementFloor(ctx, "stock:burger", 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, value)
}

func TestMemorySortedSets(t *testing.T) {
	t.Parallel()

	store := NewMemory(clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	require.NoError(t, store.ZAdd(ctx, "queue", "order-late", 300))
	require.NoError(t, store.ZAdd(ctx, "queue", "order-early", 100))
	require.NoError(t, store.ZAdd(ctx, "queue", "order-mid", 200))

	members, err := store.ZRange(ctx, "queue", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"order-early", "order-mid", "order-late"}, members)

	count, err := store.ZCard(ctx, "queue")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	require.NoError(t, store.ZRem(ctx, "queue", "order-early"))
	members, err = store.ZRange(ctx, "queue", 0, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"order-mid"}, members)
}
