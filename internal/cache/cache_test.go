package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yarukoto/internal/command"
	"yarukoto/internal/logging"
	"yarukoto/internal/query"
	"yarukoto/internal/storage"
	"yarukoto/internal/todo"
)

func newTestCache(t *testing.T) (*ListCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewListCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestListCacheGetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	due := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	in := []todo.Item{
		{ID: 1, Title: "Buy milk", Status: todo.StatusPending, Priority: todo.PriorityHigh, DueDate: &due, CreatedAt: due},
		{ID: 2, Title: "Read", Status: todo.StatusCompleted, Priority: todo.PriorityLow, CreatedAt: due},
	}
	require.NoError(t, c.Set(ctx, "k", in))
	assert.True(t, mr.Exists(keyList+"k"))
	assert.Equal(t, time.Minute, mr.TTL(keyList+"k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].DueDate)
	assert.True(t, got[0].DueDate.Equal(due))
	assert.Nil(t, got[0].ReminderDate)
	assert.Nil(t, got[1].DueDate)
	assert.Equal(t, "Read", got[1].Title)

	require.NoError(t, c.Set(ctx, "empty", nil))
	got, ok, err = c.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInvalidateAllDropsOnlyListKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), nil))
	}
	require.NoError(t, mr.Set("session:1", "keep"))

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Equal(t, []string{"session:1"}, mr.Keys())
}

func TestListerServesHitsFromCache(t *testing.T) {
	c, _ := newTestCache(t)
	src := &fakeSource{items: []todo.Item{{ID: 1, Title: "Buy milk"}}}
	l := NewLister(src, c, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := l.List(ctx, query.Params{Q: " milk ", Sort: "due_asc"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Buy milk", got[0].Title)
	}
	assert.Equal(t, 1, src.calls)

	_, err := l.List(ctx, query.Params{Q: "MILK", Sort: "due_asc"})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestListerCachesEmptyResult(t *testing.T) {
	c, _ := newTestCache(t)
	src := &fakeSource{items: []todo.Item{}}
	l := NewLister(src, c, logging.Discard())

	for i := 0; i < 2; i++ {
		got, err := l.List(context.Background(), query.Params{Tag: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, src.calls)
}

func TestMutationForcesFreshRead(t *testing.T) {
	c, mr := newTestCache(t)
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logging.Discard()
	l := NewLister(store, c, log)
	h := command.New(store, command.WithLogger(log), command.WithInvalidator(l))
	ctx := context.Background()

	_, err = h.Create(ctx, command.CreateRequest{Title: "Buy milk"})
	require.NoError(t, err)
	got, err := l.List(ctx, query.Params{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, mr.Keys(), 1)

	id, err := h.Create(ctx, command.CreateRequest{Title: "Call Sam"})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())

	got, err = l.List(ctx, query.Params{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = h.ToggleStatus(ctx, id)
	require.NoError(t, err)
	got, err = l.List(ctx, query.Params{})
	require.NoError(t, err)
	for _, it := range got {
		if it.ID == id {
			assert.Equal(t, todo.StatusCompleted, it.Status)
		}
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	items   []todo.Item
}

func (b *blockingSource) List(context.Context, query.Spec) ([]todo.Item, error) {
	close(b.entered)
	<-b.release
	return b.items, nil
}

func TestReadOverlappingInvalidationIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	src := &blockingSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		items:   []todo.Item{{ID: 1, Title: "stale"}},
	}
	l := NewLister(src, c, logging.Discard())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := l.List(ctx, query.Params{})
		done <- err
	}()
	<-src.entered
	require.NoError(t, l.Invalidate(ctx))
	close(src.release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists(keyList+query.Params{}.Key()))
}
