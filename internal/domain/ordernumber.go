package domain

import (
	"fmt"
	"strconv"
	"time"
)

const (
	orderNumberPrefix = "ORD"
	orderNumberDate   = "20060102"
	MaxDailySequence  = 9999
)

// OrderDay is the key of the per-day order number counter.
func OrderDay(t time.Time) string {
	return t.Format(orderNumberDate)
}

// FormatOrderNumber renders ORDyyyymmddNNNN. The date is taken in t's
// location; callers convert to the shop time zone first.
func FormatOrderNumber(t time.Time, seq int) (string, error) {
	if seq < 1 || seq > MaxDailySequence {
		return "", Conflictf("order sequence %d for %s out of range", seq, OrderDay(t))
	}
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, OrderDay(t), seq), nil
}

// ParseOrderNumber splits an order number into its calendar day and sequence.
func ParseOrderNumber(s string) (time.Time, int, error) {
	if len(s) != len(orderNumberPrefix)+len(orderNumberDate)+4 || s[:3] != orderNumberPrefix || !digits(s[3:]) {
		return time.Time{}, 0, Validationf("malformed order number %q", s)
	}
	day, err := time.Parse(orderNumberDate, s[3:11])
	if err != nil {
		return time.Time{}, 0, Validationf("malformed order number %q", s)
	}
	seq, err := strconv.Atoi(s[11:])
	if err != nil || seq < 1 {
		return time.Time{}, 0, Validationf("malformed order number %q", s)
	}
	return day, seq, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
