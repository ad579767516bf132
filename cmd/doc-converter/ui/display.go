package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// Table displays data in aligned columns.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// Status colors a conversion status: ok is green, recoverable conditions are
// yellow, anything else red.
func Status(status string, recoverable bool) string {
	switch {
	case status == "ok":
		return color.GreenString(status)
	case recoverable:
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}

// FormatBytes formats a size with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(100 * time.Millisecond)

	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d.Seconds()

	if minutes > 0 {
		return fmt.Sprintf("%dm %.0fs", minutes, seconds)
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// KeyValue displays a key-value pair.
func KeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s: %s\n", color.New(color.Faint).Sprint(key), value)
}
