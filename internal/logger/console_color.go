package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/drones/internal/models"
)

// colorScheme defines consistent colors for different metric types.
// Green: success/positive metrics. Red: failure/error metrics.
// Yellow: warning/threshold metrics. Cyan: labels and identifiers.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatColorizedCost renders a drone's cumulative token usage, highlighting
// cache-read tokens in green (cheap) and any cache-create tokens in
// yellow (expensive, cold-cache).
func formatColorizedCost(c models.CostSummary) string {
	scheme := newColorScheme()
	parts := []string{
		formatColorizedMetric("in", c.InputTokens, scheme),
		formatColorizedMetric("out", c.OutputTokens, scheme),
	}
	if c.CacheReadTokens > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s",
			scheme.success.Sprint("cache_read"), scheme.value.Sprintf("%d", c.CacheReadTokens)))
	}
	if c.CacheCreateTokens > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s",
			scheme.warn.Sprint("cache_create"), scheme.warn.Sprintf("%d", c.CacheCreateTokens)))
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
