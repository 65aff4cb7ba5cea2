// Package output provides styled terminal output helpers (success, error,
// warning, sync status formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/lift/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.StatusSynced:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.StatusPendingSync: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusSyncing:     lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusSyncFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.StatusConflict:    lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Title prints a bold section heading
func Title(format string, args ...interface{}) {
	fmt.Println(titleStyle.Render(fmt.Sprintf(format, args...)))
}

// Subtle prints de-emphasized detail text
func Subtle(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// StatusLabel renders a sync status with its color.
func StatusLabel(s models.SyncStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// FormatQueueItem renders one queue item as a single summary line.
func FormatQueueItem(item *models.QueueItem) string {
	id := item.ID
	if len(id) > 8 {
		id = id[:8]
	}
	line := fmt.Sprintf("%s %s %s/%s", id, item.Action, item.EntityType, item.EntityID)
	if item.Quarantined {
		line += " " + errorStyle.Render("[quarantined]")
	} else if item.RetryCount > 0 {
		line += " " + warningStyle.Render(fmt.Sprintf("[retries: %d]", item.RetryCount))
	}
	if item.LastError != "" {
		line += "\n  " + subtleStyle.Render(item.LastError)
	}
	return line
}
