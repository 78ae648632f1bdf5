package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	orderNumberPrefix = "ORD-"
	dayLayout         = "20060102"
	maxDailySequence  = 9999
)

var orderNumberRe = regexp.MustCompile(`^ORD-(\d{8})-(\d{4})$`)

// DayKey is the YYYYMMDD date an order number is scoped to.
func DayKey(t time.Time) string { return t.Format(dayLayout) }

// OrderNumberPrefix returns "ORD-YYYYMMDD-" for the given day key.
func OrderNumberPrefix(day string) string { return orderNumberPrefix + day + "-" }

// FormatOrderNumber renders ORD-YYYYMMDD-NNNN.
func FormatOrderNumber(day string, seq int) (string, error) {
	if seq < 1 || seq > maxDailySequence {
		return "", Errorf(KindConflict, "daily order sequence %d out of range for %s", seq, day)
	}
	return fmt.Sprintf("%s%04d", OrderNumberPrefix(day), seq), nil
}

// ParseOrderNumber splits an order number into its day key and sequence.
func ParseOrderNumber(s string) (string, int, error) {
	m := orderNumberRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("malformed order number %q", s)
	}
	seq, _ := strconv.Atoi(m[2])
	return m[1], seq, nil
}

// NextSequence returns the sequence following the greatest existing order
// number for a day, or 1 when there is none yet.
func NextSequence(latest string) int {
	if latest == "" {
		return 1
	}
	_, seq, err := ParseOrderNumber(latest)
	if err != nil {
		return 1
	}
	return seq + 1
}
