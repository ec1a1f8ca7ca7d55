package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yarukoto/internal/config"
	"yarukoto/internal/query"
	"yarukoto/internal/todo"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(t time.Time) *time.Time { return &t }

func insert(t *testing.T, s *Store, it todo.Item) int64 {
	t.Helper()
	if it.Status == "" {
		it.Status = todo.StatusPending
	}
	if it.Priority == "" {
		it.Priority = todo.PriorityMedium
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	id, err := s.Insert(context.Background(), it)
	require.NoError(t, err)
	return id
}

func TestInsertAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	due := time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC)
	created := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	id := insert(t, s, todo.Item{
		Title:       "Buy milk",
		Description: "2 litres",
		Priority:    todo.PriorityHigh,
		DueDate:     &due,
		Tags:        "home, errands",
		CreatedAt:   created,
	})
	assert.Positive(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2 litres", got.Description)
	assert.Equal(t, todo.StatusPending, got.Status)
	assert.Equal(t, todo.PriorityHigh, got.Priority)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Nil(t, got.ReminderDate)
	assert.Equal(t, []string{"home", "errands"}, got.TagList())
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.Get(ctx, id+100)
	assert.ErrorIs(t, err, todo.ErrNotFound)
}

func TestUpdateOnlyTouchesGivenColumns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	due := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	id := insert(t, s, todo.Item{Title: "a", Description: "keep", DueDate: &due, ReminderDate: &due, Tags: "x"})

	err := s.Update(ctx, id, []Assignment{
		Assign("title", "b"),
		Assign("reminder_date", (*time.Time)(nil)),
		Assign("tags", nil),
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
	assert.Equal(t, "keep", got.Description)
	require.NotNil(t, got.DueDate)
	assert.Nil(t, got.ReminderDate)
	assert.Empty(t, got.Tags)
}

func TestUpdateRejectsUnknownColumnAndMissingRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := insert(t, s, todo.Item{Title: "a"})

	assert.Error(t, s.Update(ctx, id, []Assignment{Assign("id", 5)}))
	assert.Error(t, s.Update(ctx, id, nil))
	assert.ErrorIs(t, s.Update(ctx, id+1, []Assignment{Assign("title", "x")}), todo.ErrNotFound)
}

func TestStatusAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := insert(t, s, todo.Item{Title: "a"})

	require.NoError(t, s.SetStatus(ctx, id, todo.StatusCompleted))
	st, err := s.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCompleted, st)

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id), "deleting twice is a no-op")

	_, err = s.Status(ctx, id)
	assert.ErrorIs(t, err, todo.ErrNotFound)
	assert.ErrorIs(t, s.SetStatus(ctx, id, todo.StatusPending), todo.ErrNotFound)
}

func TestListAppliesQuerySpec(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	later := insert(t, s, todo.Item{Title: "Later", DueDate: ptr(base.Add(72 * time.Hour)), CreatedAt: base})
	none := insert(t, s, todo.Item{Title: "No due", Priority: todo.PriorityHigh, CreatedAt: base.Add(time.Hour)})
	soon := insert(t, s, todo.Item{Title: "Soon", DueDate: ptr(base.Add(24 * time.Hour)), Tags: "work", CreatedAt: base.Add(2 * time.Hour)})
	low := insert(t, s, todo.Item{Title: "Low one", Priority: todo.PriorityLow, Description: "MILK run", CreatedAt: base.Add(3 * time.Hour)})

	ids := func(p query.Params) []int64 {
		items, err := s.List(ctx, query.Build(p))
		require.NoError(t, err)
		out := make([]int64, len(items))
		for i, it := range items {
			out[i] = it.ID
		}
		return out
	}

	assert.Equal(t, []int64{low, soon, none, later}, ids(query.Params{}))
	assert.Equal(t, []int64{later, none, soon, low}, ids(query.Params{Sort: query.SortCreatedAsc}))

	byDue := ids(query.Params{Sort: query.SortDueAsc})
	assert.Equal(t, []int64{soon, later}, byDue[:2])
	assert.ElementsMatch(t, []int64{none, low}, byDue[2:])

	assert.Equal(t, []int64{none, soon, later, low}, ids(query.Params{Sort: query.SortPriorityDesc}))
	assert.Equal(t, []int64{none}, ids(query.Params{Priority: "high"}))
	assert.Len(t, ids(query.Params{Priority: "urgent"}), 4)
	assert.Equal(t, []int64{soon}, ids(query.Params{Tag: "wo"}))
	assert.Equal(t, []int64{low}, ids(query.Params{Q: "milk"}))
	assert.Equal(t, []int64{soon}, ids(query.Params{Q: "WORK"}))
	assert.Empty(t, ids(query.Params{Q: "%"}))
}

func TestOpenMigratesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	dsn, err := sqliteDSN(path)
	require.NoError(t, err)

	raw, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO todos (title, created_at) VALUES ('old', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := Open(config.Database{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer s.Close()

	items, err := s.List(context.Background(), query.Build(query.Params{}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].Title)
	assert.Equal(t, todo.PriorityMedium, items[0].Priority)
	assert.Nil(t, items[0].DueDate)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: config.DriverPostgres}
	assert.Equal(t, "UPDATE todos SET a = $1, b = $2 WHERE id = $3", pg.rebind("UPDATE todos SET a = ?, b = ? WHERE id = ?"))
	lite := &Store{driver: config.DriverSQLite}
	assert.Equal(t, "WHERE id = ?", lite.rebind("WHERE id = ?"))
}
