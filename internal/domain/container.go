package domain

import (
	"regexp"
	"strconv"
	"sync"
	"time"
)

// EpochTimestamp is the cursor value a container starts at when no
// persisted state exists for it.
const EpochTimestamp = "1970-01-01T00:00:00.000000000Z"

// TimestampLayout is the fixed-width layout used whenever a cursor
// timestamp is formatted from a time.Time: always 9 fractional digits,
// so two cursor strings compare the same way lexicographically as their
// underlying instants do.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Container is the per-worker descriptor. Every field except
// LastLogTimestamp is written once at construction by the owning
// worker; LastLogTimestamp is additionally read by the router during
// checkpointing, so it is guarded by its own mutex.
type Container struct {
	Id          string
	Name        string
	Tags        Tags
	CaptureLogs bool
	ParseSyslog bool
	FilterRegex *regexp.Regexp
	Tty         bool

	mu               sync.Mutex
	lastLogTimestamp string
}

// NewContainer builds a descriptor with the cursor seeded from initial
// (the persisted timestamp for this id, or EpochTimestamp if none).
func NewContainer(id, name string, tags Tags, captureLogs, parseSyslog bool, filterRegex *regexp.Regexp, tty bool, initial string) *Container {
	if initial == "" {
		initial = EpochTimestamp
	}
	return &Container{
		Id:               id,
		Name:             name,
		Tags:             tags,
		CaptureLogs:      captureLogs,
		ParseSyslog:      parseSyslog,
		FilterRegex:      filterRegex,
		Tty:              tty,
		lastLogTimestamp: initial,
	}
}

// LastLogTimestamp returns the current cursor value under lock.
func (c *Container) LastLogTimestamp() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogTimestamp
}

// AdvanceLastLogTimestamp sets the cursor to ts, provided ts is not
// before the current value (invariant 1: the cursor never moves
// backwards). It reports whether the cursor was advanced.
//
// The comparison parses both timestamps rather than comparing the raw
// strings: sources such as the engine's log-line timestamps don't
// always emit a fixed-width fraction (a whole-second timestamp has no
// fraction at all), and a lexicographic string compare orders those
// incorrectly against a longer, later timestamp in the same second.
func (c *Container) AdvanceLastLogTimestamp(ts string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	newT, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return false
	}
	curT, err := time.Parse(time.RFC3339Nano, c.lastLogTimestamp)
	if err != nil {
		c.lastLogTimestamp = ts
		return true
	}
	if newT.Before(curT) {
		return false
	}
	c.lastLogTimestamp = ts
	return true
}

// SinceQuery renders the cursor, advanced by one nanosecond, as the
// integer-seconds.nanoseconds string the engine's `since` query
// parameter expects, computed without round-tripping through float64.
func (c *Container) SinceQuery() (string, error) {
	c.mu.Lock()
	ts := c.lastLogTimestamp
	c.mu.Unlock()
	return sinceQueryFromRFC3339Nano(ts)
}

func sinceQueryFromRFC3339Nano(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", err
	}
	t = t.Add(time.Nanosecond)
	secs := t.Unix()
	nanos := t.Nanosecond()
	return formatSinceQuery(secs, nanos), nil
}

func formatSinceQuery(secs int64, nanos int) string {
	const base int64 = 1000000000
	digits := base + int64(nanos)
	s := strconv.FormatInt(digits, 10)
	// drop the leading '1' we padded with, keep 9 fractional digits
	return strconv.FormatInt(secs, 10) + "." + s[1:]
}
