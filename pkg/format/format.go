// Package format renders dashboard metrics as short human-readable strings.
package format

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Humanized is the formatter used by the dashboard sidebar.
type Humanized struct{}

// Number renders n with thousands separators, e.g. 1,234,567.
func (Humanized) Number(n int64) string {
	return humanize.Comma(n)
}

// Cost renders a dollar amount with two decimals, e.g. $1,234.50.
func (Humanized) Cost(dollars float64) string {
	if dollars == 0 {
		return "$0.00"
	}
	if dollars < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -dollars)
	}
	return "$" + humanize.FormatFloat("#,###.##", dollars)
}

// Duration renders whole hours and minutes, e.g. 2h 5m or 7m.
func (Humanized) Duration(seconds float64) string {
	if seconds <= 0 {
		return "0m"
	}
	s := int64(seconds)
	hours := s / 3600
	minutes := (s % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// TokensCompact renders token counts as 1.6M, 234.0K or 56.
func TokensCompact(n int64) string {
	switch {
	case n <= 0:
		return "0"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
