package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"yarukoto/internal/command"
	"yarukoto/internal/todo"
)

type metaState struct {
	itemID      int64
	title       string
	description string
	priority    string
	tags        string
	due         string
	reminder    string
	index       int

	// rendered date values at edit start; left out of the form when unchanged
	origDue      string
	origReminder string
}

func metaFields() []string {
	return []string{
		"description",
		"priority (high/medium/low)",
		"tags (comma separated)",
		"due (YYYY-MM-DD HH:MM)",
		"reminder (YYYY-MM-DD HH:MM)",
	}
}

func (ms metaState) currentLabel() string {
	return metaFields()[ms.index]
}

func (ms metaState) values() []string {
	return []string{ms.description, ms.priority, ms.tags, ms.due, ms.reminder}
}

func (ms metaState) currentValue() string {
	v := ms.values()
	if ms.index < 0 || ms.index >= len(v) {
		return ""
	}
	return v[ms.index]
}

func (ms *metaState) setCurrentValue(v string) {
	switch ms.index {
	case 0:
		ms.description = v
	case 1:
		ms.priority = v
	case 2:
		ms.tags = v
	case 3:
		ms.due = v
	case 4:
		ms.reminder = v
	}
}

// form carries every text field, so clearing an input clears the stored
// value. Dates are sent only when edited so an untouched reminder keeps its
// exact stored time and its delivered state.
func (ms metaState) form() command.Form {
	f := command.Form{
		"action":      command.ActionUpdate,
		"id":          idString(ms.itemID),
		"title":       ms.title,
		"description": ms.description,
		"priority":    ms.priority,
		"tags":        ms.tags,
	}
	if ms.due != ms.origDue {
		f["due_date"] = ms.due
	}
	if ms.reminder != ms.origReminder {
		f["reminder_date"] = ms.reminder
	}
	return f
}

func (m Model) startMetadataEdit(it todo.Item) (tea.Model, tea.Cmd) {
	due, rem := todo.FormatInput(it.DueDate), todo.FormatInput(it.ReminderDate)
	m.meta = &metaState{
		itemID:       it.ID,
		title:        it.Title,
		description:  it.Description,
		priority:     string(it.Priority),
		tags:         it.Tags,
		due:          due,
		reminder:     rem,
		origDue:      due,
		origReminder: rem,
	}
	m.input.SetValue(m.meta.currentValue())
	m.input.Placeholder = m.meta.currentLabel()
	m.input.Focus()
	m.mode = modeMetadata
	m.status = "Edit details: tab to move, enter to save/next, esc to cancel"
	return m, nil
}

func (m Model) updateMetadataMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.meta = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		m.moveMeta(1)
		return m, nil
	case "shift+tab", "up":
		m.moveMeta(-1)
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.meta.setCurrentValue(m.input.Value())
		if m.meta.index >= len(metaFields())-1 {
			return m.saveMetadata()
		}
		m.moveMeta(1)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) moveMeta(delta int) {
	m.meta.setCurrentValue(m.input.Value())
	m.meta.index = wrapIndex(m.meta.index+delta, len(metaFields()))
	m.input.SetValue(m.meta.currentValue())
	m.input.Placeholder = m.meta.currentLabel()
	m.status = m.metaPrompt()
}

func (m Model) saveMetadata() (tea.Model, tea.Cmd) {
	res := m.run(m.meta.form())
	if !res.OK() {
		return m, nil
	}
	m.meta = nil
	m.mode = modeList
	m.input.Blur()
	return m, nil
}

func (m Model) metaPrompt() string {
	if m.meta == nil {
		return ""
	}
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel.",
		m.meta.currentLabel(), m.meta.index+1, len(metaFields()))
}

func (m Model) renderMetaBox() string {
	if m.meta == nil {
		return ""
	}
	values := m.meta.values()
	var b strings.Builder
	for i, name := range metaFields() {
		prefix := " "
		if i == m.meta.index {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-28s : %s\n", prefix, name, emptyPlaceholder(values[i])))
	}
	return b.String()
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
