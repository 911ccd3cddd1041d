// Package system provides the clock used to stamp build manifests.
package system

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SourceDateEpochEnv pins build timestamps for reproducible output.
const SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

// Clock implements emit.Clock. It reports wall time in UTC unless pinned.
type Clock struct {
	pinned *time.Time
}

// New returns a wall clock.
func New() *Clock {
	return &Clock{}
}

// FromEnv returns a clock pinned to SOURCE_DATE_EPOCH when that variable is
// set, and a wall clock otherwise.
func FromEnv() (*Clock, error) {
	raw, ok := os.LookupEnv(SourceDateEpochEnv)
	if !ok || raw == "" {
		return New(), nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", SourceDateEpochEnv, err)
	}
	return Pinned(time.Unix(secs, 0)), nil
}

// Pinned returns a clock that always reports t.
func Pinned(t time.Time) *Clock {
	t = t.UTC()
	return &Clock{pinned: &t}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c.pinned != nil {
		return *c.pinned
	}
	return time.Now().UTC()
}
