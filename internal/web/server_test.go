package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yarukoto/internal/cache"
	"yarukoto/internal/command"
	"yarukoto/internal/config"
	"yarukoto/internal/logging"
	"yarukoto/internal/reminder"
	"yarukoto/internal/storage"
	"yarukoto/internal/todo"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listed struct {
	Items []struct {
		ID                int64      `json:"id"`
		Title             string     `json:"title"`
		Status            string     `json:"status"`
		TagsList          []string   `json:"tags_list"`
		EffectiveReminder *time.Time `json:"effective_reminder"`
		DueState          string     `json:"due_state"`
	} `json:"items"`
}

func newServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logging.Discard()
	lister := cache.NewLister(store, nil, log)
	clock := func() time.Time { return testNow }
	h := command.New(store, command.WithLogger(log), command.WithInvalidator(lister), command.WithClock(clock))

	return New(config.HTTP{Addr: ":0"}, Deps{
		Lister:   lister,
		Store:    store,
		Commands: h,
		Log:      log,
		Now:      clock,
	})
}

func do(t *testing.T, s *Server, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp.StatusCode, env
}

func postForm(t *testing.T, s *Server, v url.Values) (int, envelope) {
	req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, s, req)
}

func list(t *testing.T, s *Server, rawQuery string) listed {
	t.Helper()
	code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/todos?"+rawQuery, nil))
	require.Equal(t, http.StatusOK, code)
	var out listed
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCreateAndListWithDerivedFields(t *testing.T) {
	s := newServer(t)

	code, env := postForm(t, s, url.Values{
		"action":   {"create"},
		"title":    {"Buy milk"},
		"priority": {"high"},
		"due_date": {"2026-10-18T08:00:00Z"},
		"tags":     {"home, errands"},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "To-do added.", env.Message)

	code, _ = postForm(t, s, url.Values{
		"action": {"create"}, "title": {"Later"}, "due_date": {"2026-10-25T08:00:00Z"},
	})
	require.Equal(t, http.StatusCreated, code)

	out := list(t, s, "sort=due_asc")
	require.Len(t, out.Items, 2)
	first := out.Items[0]
	assert.Equal(t, "Buy milk", first.Title)
	assert.Equal(t, []string{"home", "errands"}, first.TagsList)
	assert.Equal(t, "overdue", first.DueState)
	require.NotNil(t, first.EffectiveReminder)
	assert.True(t, first.EffectiveReminder.Equal(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)))
	assert.Empty(t, out.Items[1].DueState)
	assert.Equal(t, []string{}, out.Items[1].TagsList)
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) reminder.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func TestBuyMilkListedAndRemindedAtDueTime(t *testing.T) {
	s := newServer(t)
	for _, v := range []url.Values{
		{"action": {"create"}, "title": {"Someday"}},
		{"action": {"create"}, "title": {"Report"}, "due_date": {"2026-10-19T09:00:00Z"}},
		{"action": {"create"}, "title": {"Buy milk"}, "due_date": {"2026-10-18T10:00:00Z"}},
	} {
		code, env := postForm(t, s, v)
		require.Equal(t, http.StatusCreated, code, env.Message)
	}

	code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/todos?sort=due_asc", nil))
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Items []todo.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	got := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		got = append(got, it.Title)
	}
	assert.Equal(t, []string{"Buy milk", "Report", "Someday"}, got)

	clock := &manualClock{now: testNow}
	var notes []reminder.Notification
	sched := reminder.NewScheduler(reminder.NotifierFunc(func(n reminder.Notification) error {
		notes = append(notes, n)
		return nil
	}), reminder.WithClock(clock), reminder.WithLogger(logging.Discard()))
	t.Cleanup(sched.Stop)

	sched.Sync(out.Items)
	assert.Empty(t, notes)

	clock.Advance(59 * time.Minute)
	assert.Empty(t, notes)

	clock.Advance(time.Minute)
	require.Len(t, notes, 1)
	assert.Equal(t, out.Items[0].ID, notes[0].ItemID)
	assert.Contains(t, notes[0].Body, "Buy milk")

	sched.Sync(out.Items)
	clock.Advance(time.Hour)
	assert.Len(t, notes, 1)
}

func TestListFilters(t *testing.T) {
	s := newServer(t)
	for _, v := range []url.Values{
		{"action": {"create"}, "title": {"Report"}, "priority": {"high"}, "tags": {"work"}},
		{"action": {"create"}, "title": {"Groceries"}, "priority": {"low"}, "tags": {"home"}},
		{"action": {"create"}, "title": {"Slides"}, "priority": {"high"}, "tags": {"work, talk"}},
	} {
		code, _ := postForm(t, s, v)
		require.Equal(t, http.StatusCreated, code)
	}

	assert.Len(t, list(t, s, "priority=high").Items, 2)
	assert.Len(t, list(t, s, "priority=urgent").Items, 3)
	assert.Len(t, list(t, s, "tag=talk").Items, 1)
	assert.Len(t, list(t, s, "q=REPORT").Items, 1)
	assert.Len(t, list(t, s, "q=%25").Items, 0)
	assert.Len(t, list(t, s, "sort=title%3BDROP%20TABLE%20todos").Items, 3)
}

func TestJSONCommandsAndErrors(t *testing.T) {
	s := newServer(t)

	post := func(body string) (int, envelope) {
		req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(t, s, req)
	}

	code, env := post(`{"action":"create","title":"Walk"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = post(`{"action":"toggle_status","id":1}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var res struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "completed", res.Status)

	code, env = post(`{"action":"create","title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "title is required", env.Message)

	code, env = post(`{"action":"toggle_status","id":99}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "That to-do no longer exists.", env.Message)

	code, _ = post(`{"action":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(`{"action":"delete","id":1}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, list(t, s, "").Items)
}

func TestGetOne(t *testing.T) {
	s := newServer(t)
	code, _ := postForm(t, s, url.Values{"action": {"create"}, "title": {"Read"}})
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/todos/1", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"title":"Read"`)

	code, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/todos/2", nil))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/todos/abc", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newServer(t)
	code, env := do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	_, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "todo_http_requests_total")
}

func TestMetricsLabelRoutePatterns(t *testing.T) {
	s := newServer(t)
	_, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/todos/41", nil))
	_, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/scan/wp-admin-7f3a", nil))
	_, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/scan/phpmyadmin-0c1d", nil))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, `route="/todos/:id"`)
	assert.Contains(t, out, `route="unmatched"`)
	assert.NotContains(t, out, "/todos/41")
	assert.NotContains(t, out, "wp-admin")
	assert.NotContains(t, out, "phpmyadmin")
}
