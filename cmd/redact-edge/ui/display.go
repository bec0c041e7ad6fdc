package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Message prints a plain line.
func Message(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format+"\n", args...)
}

// Error prints an error line to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}

// Success prints a success line.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", cyan("ℹ"), fmt.Sprintf(format, args...))
}

// Step prints a step line, only in verbose mode.
func Step(format string, args ...interface{}) {
	if !verboseFlag {
		return
	}
	fmt.Fprintf(stdout, "  → %s\n", fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func Newline() {
	fmt.Fprintln(stdout)
}

// Section prints an underlined header.
func Section(title string) {
	fmt.Fprintf(stdout, "\n%s\n%s\n\n", bold(title), strings.Repeat("=", len(title)))
}

// KeyValue prints one labelled value.
func KeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s: %s\n", key, value)
}

// Table prints rows under headers in aligned columns.
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

// Box prints content framed with a title.
func Box(title, content string) {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	width := len([]rune(title))
	for _, line := range lines {
		if n := len([]rune(line)); n > width {
			width = n
		}
	}
	if width < 40 {
		width = 40
	}

	fmt.Fprintf(stdout, "┌%s┐\n", strings.Repeat("─", width+2))
	if title != "" {
		fmt.Fprintf(stdout, "│ %s │\n", pad(title, width))
		fmt.Fprintf(stdout, "├%s┤\n", strings.Repeat("─", width+2))
	}
	for _, line := range lines {
		fmt.Fprintf(stdout, "│ %s │\n", pad(line, width))
	}
	fmt.Fprintf(stdout, "└%s┘\n", strings.Repeat("─", width+2))
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// FormatDuration formats a duration for humans.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
