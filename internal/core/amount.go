// Package core holds the ledger domain types and the parsing and
// aggregation rules shared by the service layer.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date wire format used everywhere:
// transaction dates in requests, storage, and CSV rows.
const DateLayout = "2006-01-02"

// ParseAmount parses a decimal amount string. The sign of a transaction
// is conveyed by its type, not by the amount, so no sign or range check
// happens here.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", ErrInvalidInput, s)
	}
	return d, nil
}

// ParseDate parses a calendar date, keeping only the date portion of an
// RFC 3339-ish value (everything before a 'T' suffix is considered).
// An empty string defaults to the current UTC date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Today(), nil
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}

// Today returns the current UTC date with the time-of-day zeroed.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Percentage computes floor(part/total*100) as an integer, or 0 when
// total is not positive. Truncation, not rounding.
func Percentage(part, total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(part.Div(total).Mul(decimal.NewFromInt(100)).IntPart())
}
