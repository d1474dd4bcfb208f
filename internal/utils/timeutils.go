package utils

import (
	"fmt"
	"time"
)

// NowRFC3339 returns the current UTC time in the RFC3339 form used by
// baseline and report timestamps.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// AgeOf reports how long ago an RFC3339 timestamp was recorded, or zero
// when the value does not parse.
func AgeOf(value string) time.Duration {
	t, err := ParseRFC3339(value)
	if err != nil {
		return 0
	}
	age := time.Since(t)
	if age < 0 {
		return 0
	}
	return age
}
