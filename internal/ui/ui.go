package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"yarukoto/internal/command"
	"yarukoto/internal/config"
	"yarukoto/internal/query"
	"yarukoto/internal/reminder"
	"yarukoto/internal/todo"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeRename
	modeSearch
	modeTag
	modeMetadata
)

type Lister interface {
	List(ctx context.Context, p query.Params) ([]todo.Item, error)
}

type Commands interface {
	Dispatch(ctx context.Context, f command.Form) command.Result
}

type Scheduler interface {
	Sync(items []todo.Item)
}

type Deps struct {
	Commands  Commands
	Lister    Lister
	Scheduler Scheduler
	Toasts    *reminder.Toasts
	Consent   *Consent
	Log       *logrus.Entry
	Now       func() time.Time
}

type Model struct {
	deps       Deps
	cfg        config.Config
	items      []todo.Item
	params     query.Params
	cursor     int
	mode       mode
	input      textinput.Model
	status     string
	prefix     string
	confirmDel bool
	pendingDel *todo.Item
	meta       *metaState
	askConsent bool
}

// Run wires the reminder pipeline to a new program and blocks until the
// user quits.
func Run(commands Commands, lister Lister, cfg config.Config, configPath string, log *logrus.Entry) error {
	consent := NewConsent(reminder.Permission(cfg.Reminders.Notifications), func(p reminder.Permission) error {
		cfg.Reminders.Notifications = string(p)
		return config.Save(configPath, cfg)
	})

	var program *tea.Program
	toasts := reminder.NewToasts(cfg.Reminders.ToastDuration(), nil, func(t reminder.Toast) {
		if program != nil {
			go program.Send(toastMsg{toast: t})
		}
	})
	dispatcher := &reminder.Dispatcher{
		Native:     reminder.NewTerminalNotifier(os.Stderr),
		Fallback:   toasts,
		Permission: consent.Permission,
		Log:        log,
	}
	sched := reminder.NewScheduler(dispatcher, reminder.WithLogger(log))
	defer sched.Stop()

	m, err := New(Deps{
		Commands:  commands,
		Lister:    lister,
		Scheduler: sched,
		Toasts:    toasts,
		Consent:   consent,
		Log:       log,
	}, cfg)
	if err != nil {
		return err
	}

	program = tea.NewProgram(m, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func New(deps Deps, cfg config.Config) (Model, error) {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Toasts == nil {
		deps.Toasts = reminder.NewToasts(cfg.Reminders.ToastDuration(), nil, nil)
	}

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		deps:   deps,
		cfg:    cfg,
		params: query.Params{Sort: query.ParseSort(cfg.DefaultSort)},
		input:  ti,
		mode:   modeList,
		status: fmt.Sprintf("Press '%s' to add, space to toggle, '%s' to delete.", cfg.Keys.Add, cfg.Keys.Delete),
	}
	items, err := deps.Lister.List(context.Background(), m.params)
	if err != nil {
		return m, err
	}
	m.items = items
	m.cursor = clampCursor(0, len(items))

	if deps.Consent != nil && deps.Consent.Permission() == reminder.PermissionDefault {
		m.askConsent = true
	}
	return m, nil
}

type syncMsg struct{}

type tickMsg time.Time

type toastMsg struct {
	toast reminder.Toast
}

type toastExpiredMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg { return syncMsg{} }, tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.askConsent {
			return m.updateConsent(msg.String())
		}
		if m.meta != nil {
			return m.updateMetadataMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case syncMsg:
		m.syncReminders()
	case tickMsg:
		// due highlighting depends on the clock
		return m, tick()
	case toastMsg:
		wait := msg.toast.Expires.Sub(m.deps.Now())
		if wait < 0 {
			wait = 0
		}
		return m, tea.Tick(wait, func(time.Time) tea.Msg { return toastExpiredMsg{} })
	case toastExpiredMsg:
		m.deps.Toasts.Active()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.mode != modeList {
		return m.updateInputMode(key, msg)
	}
	return m.updateListMode(key)
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	if m.prefix != "" {
		return m.finishSort(key)
	}
	if m.startsSort(key) {
		m.prefix = key
		m.status = "Sort: d due • p priority • t newest • o oldest"
		return m, nil
	}

	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(m.items) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.items))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.items))
		}
	case m.cfg.Keys.Add:
		m.startInput(modeAdd, "Title", "")
		m.status = "Add mode: type a title and press Enter"
	case m.cfg.Keys.Toggle:
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		res := m.run(command.Form{"action": command.ActionToggleStatus, "id": idString(it.ID)})
		if res.OK() {
			m.cursor = clampCursor(m.cursor+1, len(m.items))
		}
	case m.cfg.Keys.Delete:
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = &it
		m.status = fmt.Sprintf("Delete %q? y/n", it.Title)
	case m.cfg.Keys.Detail:
		it, ok := m.current()
		if !ok {
			m.status = "No to-dos"
			return m, nil
		}
		m.status = detailLine(it)
	case m.cfg.Keys.Edit:
		it, ok := m.current()
		if !ok {
			m.status = "No to-dos to edit"
			return m, nil
		}
		return m.startMetadataEdit(it)
	case m.cfg.Keys.Rename:
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		m.startInput(modeRename, "Title", it.Title)
		m.status = "Rename: edit the title and press Enter"
	case m.cfg.Keys.PriorityUp, m.cfg.Keys.PriorityDown:
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		next := it.Priority.Raise()
		if key == m.cfg.Keys.PriorityDown {
			next = it.Priority.Lower()
		}
		if next == it.Priority {
			m.status = fmt.Sprintf("Priority is already %s", it.Priority)
			return m, nil
		}
		m.run(command.Form{
			"action":   command.ActionUpdate,
			"id":       idString(it.ID),
			"title":    it.Title,
			"priority": string(next),
		})
	case m.cfg.Keys.DueForward, m.cfg.Keys.DueBack:
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		days := 1
		if key == m.cfg.Keys.DueBack {
			days = -1
		}
		m.run(command.Form{
			"action":   command.ActionUpdate,
			"id":       idString(it.ID),
			"title":    it.Title,
			"due_date": shiftDue(it.DueDate, days, m.deps.Now()).Format(time.RFC3339),
		})
	case m.cfg.Keys.Search:
		m.startInput(modeSearch, "Search title, description or tags", m.params.Q)
		m.status = "Search: Enter to apply, empty to clear"
	case m.cfg.Keys.FilterTag:
		m.startInput(modeTag, "Tag", m.params.Tag)
		m.status = "Tag filter: Enter to apply, empty to clear"
	case m.cfg.Keys.CyclePrio:
		m.params.Priority = nextPriorityFilter(m.params.Priority)
		m.reload(0)
		if m.params.Priority == "" {
			m.status = "Showing all priorities"
		} else {
			m.status = "Showing " + m.params.Priority + " priority"
		}
	case m.cfg.Keys.Dismiss:
		if n := m.deps.Toasts.DismissAll(); n > 0 {
			m.status = "Dismissed reminders"
		}
	}
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		m.run(command.Form{"action": command.ActionDelete, "id": idString(m.pendingDel.ID)})
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) updateConsent(key string) (tea.Model, tea.Cmd) {
	var granted bool
	switch key {
	case "y", "Y":
		granted = true
	case "n", "N", m.cfg.Keys.Cancel:
		granted = false
	case "ctrl+c":
		return m, tea.Quit
	default:
		return m, nil
	}
	m.askConsent = false
	if err := m.deps.Consent.Decide(granted); err != nil {
		m.deps.Log.WithError(err).Warn("could not save notification permission")
	}
	if granted {
		m.status = "Desktop notifications enabled"
	} else {
		m.status = "Reminders will show inside the app"
	}
	return m, nil
}

func (m Model) startsSort(key string) bool {
	if len(key) != 1 {
		return false
	}
	for seq := range m.sortBindings() {
		if len(seq) > 1 && strings.HasPrefix(seq, key) {
			return true
		}
	}
	return false
}

func (m Model) finishSort(key string) (tea.Model, tea.Cmd) {
	seq := m.prefix + key
	m.prefix = ""
	sort, ok := m.sortBindings()[seq]
	if !ok {
		m.status = fmt.Sprintf("No sort bound to %q", seq)
		return m, nil
	}
	m.params.Sort = sort
	sel, _ := m.current()
	m.reload(sel.ID)
	m.status = "Sorted by " + sortLabel(sort)
	return m, nil
}

func (m Model) sortBindings() map[string]query.Sort {
	return map[string]query.Sort{
		m.cfg.Keys.SortDue:      query.SortDueAsc,
		m.cfg.Keys.SortPriority: query.SortPriorityDesc,
		m.cfg.Keys.SortCreated:  query.SortCreatedDesc,
		m.cfg.Keys.SortOldest:   query.SortCreatedAsc,
	}
}

func (m *Model) startInput(md mode, placeholder, value string) {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) stopInput() {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
}

func (m Model) updateInputMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.stopInput()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		return m.submitInput(m.input.Value())
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) submitInput(value string) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAdd:
		res := m.run(command.Form{"action": command.ActionCreate, "title": value})
		if !res.OK() {
			return m, nil
		}
	case modeRename:
		it, ok := m.current()
		if !ok {
			break
		}
		res := m.run(command.Form{"action": command.ActionUpdate, "id": idString(it.ID), "title": value})
		if !res.OK() {
			return m, nil
		}
	case modeSearch:
		m.params.Q = strings.TrimSpace(value)
		m.reload(0)
		m.status = filterStatus("search", m.params.Q, len(m.items))
	case modeTag:
		m.params.Tag = strings.TrimSpace(value)
		m.reload(0)
		m.status = filterStatus("tag", m.params.Tag, len(m.items))
	}
	m.stopInput()
	return m, nil
}

// run dispatches a command and reloads the list on success. The result
// message becomes the status line either way.
func (m *Model) run(f command.Form) command.Result {
	res := m.deps.Commands.Dispatch(context.Background(), f)
	m.status = res.Message
	if !res.OK() {
		m.deps.Log.WithError(res.Err).WithField("action", res.Action).Warn("command failed")
		if res.Action == command.ActionDelete || res.Action == command.ActionToggleStatus {
			m.reload(0)
		}
		return res
	}
	m.reload(res.ID)
	return res
}

// reload re-reads the list with the current parameters, keeps the cursor
// on selectID when it is still listed, and resyncs reminders.
func (m *Model) reload(selectID int64) {
	items, err := m.deps.Lister.List(context.Background(), m.params)
	if err != nil {
		m.deps.Log.WithError(err).Error("reload failed")
		m.status = "Could not load your to-dos."
		return
	}
	m.items = items
	m.cursor = clampCursor(m.cursor, len(items))
	if selectID > 0 {
		for i, it := range items {
			if it.ID == selectID {
				m.cursor = i
				break
			}
		}
	}
	m.syncReminders()
}

func (m *Model) syncReminders() {
	if m.deps.Scheduler != nil {
		m.deps.Scheduler.Sync(m.items)
	}
}

func (m Model) current() (todo.Item, bool) {
	if len(m.items) == 0 {
		return todo.Item{}, false
	}
	return m.items[clampCursor(m.cursor, len(m.items))], true
}

func shiftDue(due *time.Time, days int, now time.Time) time.Time {
	base := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())
	if due != nil {
		base = due.Local()
	}
	return base.AddDate(0, 0, days)
}

func nextPriorityFilter(cur string) string {
	switch todo.Priority(cur) {
	case "":
		return string(todo.PriorityHigh)
	case todo.PriorityHigh:
		return string(todo.PriorityMedium)
	case todo.PriorityMedium:
		return string(todo.PriorityLow)
	default:
		return ""
	}
}

func filterStatus(kind, value string, n int) string {
	if value == "" {
		return fmt.Sprintf("Cleared %s filter", kind)
	}
	return fmt.Sprintf("%d match %s %q", n, kind, value)
}

func sortLabel(s query.Sort) string {
	switch s {
	case query.SortDueAsc:
		return "due date"
	case query.SortPriorityDesc:
		return "priority"
	case query.SortCreatedAsc:
		return "oldest first"
	default:
		return "newest first"
	}
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
