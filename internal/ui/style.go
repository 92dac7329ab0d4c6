package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/amonks/taskmirror/task"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[task.Status]lipgloss.Style{
		task.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		task.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		task.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		task.StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true),
	}

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		task.PriorityMedium: lipgloss.NewStyle(),
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		task.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

// Heading styles a section heading.
func Heading(value string) string {
	return headingStyle.Render(value)
}

// Muted styles secondary text.
func Muted(value string) string {
	return mutedStyle.Render(value)
}

// Error styles an error message.
func Error(value string) string {
	return errorStyle.Render(value)
}

// StatusBadge renders a status in its color.
func StatusBadge(status task.Status) string {
	style, ok := statusStyles[status]
	if !ok {
		return string(status)
	}
	return style.Render(string(status))
}

// PriorityBadge renders a priority in its color.
func PriorityBadge(priority task.Priority) string {
	style, ok := priorityStyles[priority]
	if !ok {
		return string(priority)
	}
	return style.Render(string(priority))
}

// OverdueMark marks a due string red.
func OverdueMark(value string) string {
	return errorStyle.Render(value)
}
