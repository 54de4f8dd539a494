package settings

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uniorder/backend/internal/domain/ordering"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ordering.DefaultRestaurantSettings(), nil)

	assert.True(t, store.Settings(ctx).IsOpen)
	assert.False(t, store.Settings(ctx).AutoAccept)

	got := store.SetOpen(ctx, false)
	assert.False(t, got.IsOpen)
	assert.False(t, store.Settings(ctx).IsOpen)

	got = store.SetAutoAccept(ctx, true)
	assert.True(t, got.AutoAccept)
	assert.False(t, got.IsOpen)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ordering.DefaultRestaurantSettings(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.SetOpen(ctx, i%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.Settings(ctx)
		}()
	}
	wg.Wait()
}
