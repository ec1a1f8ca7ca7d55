package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"yarukoto/internal/config"
	"yarukoto/internal/query"
	"yarukoto/internal/reminder"
	"yarukoto/internal/todo"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dueSoonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle    = lipgloss.NewStyle().Faint(true)
	toastStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

const displayLayout = "2006-01-02 15:04"

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Yarukoto"))
	if f := filterSummary(m.params); f != "" {
		b.WriteString("  " + f)
	}
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(fmt.Sprintf("No to-dos here. Press '%s' to add one.", m.cfg.Keys.Add))
	} else {
		b.WriteString(m.renderList())
	}

	b.WriteString("\n---\n")

	switch {
	case m.meta != nil:
		b.WriteString("Details editor (tab/shift+tab to move, enter to save/next, esc to cancel)\n\n")
		b.WriteString(m.renderMetaBox())
		b.WriteString("\nField: " + m.meta.currentLabel() + "\n")
		b.WriteString(m.input.View())
	case m.mode != modeList:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetailPanel())
	}

	if toasts := m.deps.Toasts.Active(); len(toasts) > 0 {
		b.WriteString("\n")
		for _, t := range toasts {
			b.WriteString(toastStyle.Render("⏰ " + t.Message))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	if m.askConsent {
		b.WriteString(promptStyle.Render("Allow desktop notifications for reminders? y/n"))
	} else {
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	b.WriteString(renderHelp(m.cfg.Keys))
	return b.String()
}

func (m Model) renderList() string {
	now := m.deps.Now()
	var b strings.Builder
	for i, it := range m.items {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}
		checkbox := "[ ]"
		if it.Completed() {
			checkbox = "[x]"
		}

		title := it.Title
		if it.Completed() {
			title = doneStyle.Render(title)
		}
		line := fmt.Sprintf("%s %s %s %s", cursor, checkbox, priorityBadge(it.Priority), title)
		if it.DueDate != nil {
			line += "  " + dueLabel(it, now)
		}
		if tags := it.TagList(); len(tags) > 0 {
			line += "  #" + strings.Join(tags, " #")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func dueLabel(it todo.Item, now time.Time) string {
	label := "due " + it.DueDate.Local().Format(displayLayout)
	switch reminder.Classify(it, now) {
	case reminder.DueOverdue:
		return overdueStyle.Render(label + " (overdue)")
	case reminder.DueSoon:
		return dueSoonStyle.Render(label)
	default:
		return label
	}
}

func priorityBadge(p todo.Priority) string {
	switch p {
	case todo.PriorityHigh:
		return "!!"
	case todo.PriorityLow:
		return " ."
	default:
		return " !"
	}
}

func (m Model) renderDetailPanel() string {
	it, ok := m.current()
	if !ok {
		return "No to-do selected"
	}
	var b strings.Builder
	b.WriteString("Details\n")
	b.WriteString(fmt.Sprintf("Title       : %s\n", it.Title))
	b.WriteString(fmt.Sprintf("Status      : %s\n", it.Status))
	b.WriteString(fmt.Sprintf("Priority    : %s\n", it.Priority))
	b.WriteString(fmt.Sprintf("Description : %s\n", emptyPlaceholder(it.Description)))
	b.WriteString(fmt.Sprintf("Tags        : %s\n", emptyPlaceholder(it.Tags)))
	b.WriteString(fmt.Sprintf("Due         : %s\n", formatTime(it.DueDate)))
	b.WriteString(fmt.Sprintf("Reminder    : %s\n", formatTime(it.ReminderDate)))
	b.WriteString(fmt.Sprintf("Created     : %s\n", it.CreatedAt.Local().Format(displayLayout)))
	return b.String()
}

func detailLine(it todo.Item) string {
	info := fmt.Sprintf("#%d • %s • %s • %s", it.ID, it.Title, it.Status, it.Priority)
	if it.Tags != "" {
		info += " • tags:" + it.Tags
	}
	if it.DueDate != nil {
		info += " • due:" + formatTime(it.DueDate)
	}
	if at, ok := it.EffectiveReminder(); ok {
		info += " • remind:" + at.Local().Format(displayLayout)
	}
	return info
}

func filterSummary(p query.Params) string {
	var parts []string
	if p.Q != "" {
		parts = append(parts, fmt.Sprintf("search:%q", p.Q))
	}
	if p.Priority != "" {
		parts = append(parts, "priority:"+p.Priority)
	}
	if p.Tag != "" {
		parts = append(parts, "tag:"+p.Tag)
	}
	parts = append(parts, "sort:"+sortLabel(query.ParseSort(string(p.Sort))))
	return strings.Join(parts, " ")
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s toggle • %s delete • %s edit • %s rename • %s/%s priority • %s/%s due • %s search • %s tag • %s priority filter • %s/%s/%s/%s sort • %s dismiss • %s quit",
		k.Up, k.Down, k.Add, displayKey(k.Toggle), k.Delete, k.Edit, k.Rename, k.PriorityUp, k.PriorityDown,
		k.DueBack, k.DueForward, k.Search, k.FilterTag, k.CyclePrio,
		k.SortDue, k.SortPriority, k.SortCreated, k.SortOldest, k.Dismiss, k.Quit)
}

func displayKey(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "(none)"
	}
	return t.Local().Format(displayLayout)
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}
