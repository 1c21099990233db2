// Package types defines the core interfaces and types for Mongo Profiler.
package types

import (
	"context"
	"time"
)

// Level is a MongoDB profiling level. The numeric values match the values
// accepted by the database's "profile" command.
type Level int

const (
	// LevelOff disables the profiler entirely.
	LevelOff Level = 0

	// LevelSlowOnly captures only operations slower than the slowms threshold.
	LevelSlowOnly Level = 1

	// LevelAll captures every operation.
	LevelAll Level = 2
)

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelSlowOnly:
		return "slow-only"
	case LevelAll:
		return "all"
	default:
		return "unknown"
	}
}

// RawEntry is one unparsed document from the database's profile collection.
// It is owned by the store that produced it; the classifier only reads it.
type RawEntry struct {
	// Info is the free-text description of the profiled operation.
	Info string

	// TS is the entry timestamp; HasTS reports whether the entry carried one.
	TS    time.Time
	HasTS bool

	// Fields holds any additional metadata the store attached to the entry
	// (millis, client, user, ...). Passed through to the record untouched.
	Fields map[string]any
}

// ProfileStore is the interface the session harness requires from the
// database. Implementations live at the boundary (pkg/store); the parsing
// core never touches this interface.
type ProfileStore interface {
	// ProfilingLevel returns the database's current profiling level.
	ProfilingLevel(ctx context.Context) (Level, error)

	// SetProfilingLevel changes the database's profiling level.
	SetProfilingLevel(ctx context.Context, level Level) error

	// LatestEntryTime returns the timestamp of the newest existing profile
	// entry. The bool is false when the profile collection is empty.
	LatestEntryTime(ctx context.Context) (time.Time, bool, error)

	// FetchEntries returns profile entries ordered by timestamp ascending.
	// When hasAfter is true only entries strictly newer than after are
	// returned. The first skip entries of the result are dropped.
	FetchEntries(ctx context.Context, after time.Time, hasAfter bool, skip int) ([]RawEntry, error)

	// InsertMarker performs a throwaway operation whose profile entry the
	// marker pattern recognizes, stamping a labeled timestamp into the
	// captured stream.
	InsertMarker(ctx context.Context, text string) error
}
