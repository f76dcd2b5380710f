package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vigia/core"
)

// outputAsJSON prints any value as indented JSON.
func outputAsJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputAsYAML prints any value as YAML.
func outputAsYAML(v interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(v)
}

// renderAlertsTable displays alerts in a formatted table.
func renderAlertsTable(alerts []core.Alert, total int64, offset int) {
	if len(alerts) == 0 {
		warningColor.Println("No alerts match the filter")
		return
	}

	headerColor.Println("ALERTS")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-24s %-20s %-6s %-16s %-20s %-18s\n",
		"ID", "Timestamp", "Level", "Agent", "Status", "Description")
	fmt.Println(strings.Repeat("-", 110))

	for _, alert := range alerts {
		id := alert.ID
		if len(id) > 22 {
			id = id[:22] + ".."
		}
		description := alert.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		agent := alert.AgentName
		if len(agent) > 15 {
			agent = agent[:15]
		}

		status := core.StatusNew
		if alert.Annotation != nil {
			status = alert.Annotation.Status
		}

		fmt.Printf("%-24s %-20s %-6s %-16s %-20s %-18s\n",
			id,
			alert.Timestamp.Local().Format("2006-01-02 15:04:05"),
			levelLabel(alert.Level),
			agent,
			statusLabel(status),
			description)
	}

	fmt.Println(strings.Repeat("=", 110))
	fmt.Printf("Showing %d of %d alerts (offset %d)\n", len(alerts), total, offset)
}

// statusLabel renders a triage status with coloring. The empty status
// means the alert has not been triaged yet.
func statusLabel(status string) string {
	switch status {
	case core.StatusNew:
		return warningColor.Sprint("novo")
	case core.StatusClosed:
		return successColor.Sprint(status)
	case core.StatusCanceled, core.StatusFalsePositive:
		return errorColor.Sprint(status)
	default:
		return status
	}
}

// renderStats displays the triage status breakdown.
func renderStats(stats *core.AlertStats) {
	headerColor.Println("ALERT STATISTICS")
	headerColor.Println(strings.Repeat("=", 40))
	printStatRow("Total", stats.Total)
	printStatRow("New", stats.New)
	printStatRow("In progress", stats.InProgress)
	printStatRow("Scheduled", stats.Scheduled)
	printStatRow("In homologation", stats.InHomologation)
	printStatRow("Closed", stats.Closed)
	printStatRow("False positive", stats.FalsePositive)
	printStatRow("Canceled", stats.Canceled)
	fmt.Println(strings.Repeat("=", 40))
}

func printStatRow(label string, value int64) {
	fmt.Printf("%-20s %d\n", label, value)
}

// renderSyncLog displays one sync attempt.
func renderSyncLog(entry *core.SyncLog) {
	if entry == nil {
		warningColor.Println("No sync has run yet")
		return
	}

	headerColor.Println("LAST SYNC")
	headerColor.Println(strings.Repeat("=", 40))
	fmt.Printf("%-12s %s\n", "When", formatTimeSince(entry.LastSync))
	fmt.Printf("%-12s %d\n", "Alerts", entry.AlertsCount)
	if entry.Status == core.SyncStatusSuccess {
		fmt.Printf("%-12s %s\n", "Status", successColor.Sprint(entry.Status))
	} else {
		fmt.Printf("%-12s %s\n", "Status", errorColor.Sprint(entry.Status))
		if entry.Error != "" {
			fmt.Printf("%-12s %s\n", "Error", entry.Error)
		}
	}
	fmt.Println(strings.Repeat("=", 40))
}

// formatTimeSince renders a timestamp as a relative duration.
func formatTimeSince(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	since := time.Since(ts)
	switch {
	case since < time.Minute:
		return "just now"
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(since.Hours()/24))
	}
}
