package session

import (
	"context"
	"time"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// MockStore implements types.ProfileStore for testing. It records every
// call so tests can assert on ordering, skip counts, and restore behavior.
type MockStore struct {
	level     types.Level
	latest    time.Time
	hasLatest bool
	entries   []types.RawEntry

	levelErr    error
	setLevelErr error
	latestErr   error
	fetchErr    error
	markerErr   error

	setLevelCalls []types.Level
	fetchCalls    []fetchCall
	markerCalls   []string
}

// fetchCall captures the arguments of one FetchEntries invocation.
type fetchCall struct {
	after    time.Time
	hasAfter bool
	skip     int
}

// NewMockStore creates a mock store with the given starting level.
func NewMockStore(level types.Level) *MockStore {
	return &MockStore{level: level}
}

// SetLatest configures the watermark the store reports.
func (m *MockStore) SetLatest(ts time.Time) *MockStore {
	m.latest, m.hasLatest = ts, true
	return m
}

// AddEntry appends a raw entry to the fetch result.
func (m *MockStore) AddEntry(entry types.RawEntry) *MockStore {
	m.entries = append(m.entries, entry)
	return m
}

// SetFetchError configures FetchEntries to fail.
func (m *MockStore) SetFetchError(err error) *MockStore {
	m.fetchErr = err
	return m
}

// SetLevelError configures ProfilingLevel to fail.
func (m *MockStore) SetLevelError(err error) *MockStore {
	m.levelErr = err
	return m
}

// ProfilingLevel implements types.ProfileStore.
func (m *MockStore) ProfilingLevel(ctx context.Context) (types.Level, error) {
	if m.levelErr != nil {
		return types.LevelOff, m.levelErr
	}
	return m.level, nil
}

// SetProfilingLevel implements types.ProfileStore.
func (m *MockStore) SetProfilingLevel(ctx context.Context, level types.Level) error {
	if m.setLevelErr != nil {
		return m.setLevelErr
	}
	m.setLevelCalls = append(m.setLevelCalls, level)
	m.level = level
	return nil
}

// LatestEntryTime implements types.ProfileStore.
func (m *MockStore) LatestEntryTime(ctx context.Context) (time.Time, bool, error) {
	if m.latestErr != nil {
		return time.Time{}, false, m.latestErr
	}
	return m.latest, m.hasLatest, nil
}

// FetchEntries implements types.ProfileStore.
func (m *MockStore) FetchEntries(ctx context.Context, after time.Time, hasAfter bool, skip int) ([]types.RawEntry, error) {
	m.fetchCalls = append(m.fetchCalls, fetchCall{after: after, hasAfter: hasAfter, skip: skip})
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if skip >= len(m.entries) {
		return nil, nil
	}
	return m.entries[skip:], nil
}

// InsertMarker implements types.ProfileStore.
func (m *MockStore) InsertMarker(ctx context.Context, text string) error {
	if m.markerErr != nil {
		return m.markerErr
	}
	m.markerCalls = append(m.markerCalls, text)
	return nil
}
