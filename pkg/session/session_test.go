package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// queryEntry builds a query-shaped raw entry with the given timestamp.
func queryEntry(ts time.Time) types.RawEntry {
	return types.RawEntry{
		Info:  "query test.users ntoreturn:5\nquery: { name: \"bob\" } nreturned:1",
		TS:    ts,
		HasTS: true,
	}
}

// TestProfiler_SingleRecordSession tests the basic scenario: prior level
// slow-only, no pre-existing entries, one profiled query. The session yields
// exactly one record, restores the prior level, and attaches no ts_diff.
func TestProfiler_SingleRecordSession(t *testing.T) {
	store := NewMockStore(types.LevelSlowOnly)
	store.AddEntry(queryEntry(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)))

	p := New(store)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.State() != StateCapturing {
		t.Fatalf("State() = %q, want %q", p.State(), StateCapturing)
	}

	records, err := p.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.State() != StateDrained {
		t.Fatalf("State() = %q, want %q", p.State(), StateDrained)
	}

	if len(records) != 1 {
		t.Fatalf("Stop() returned %d records, want 1", len(records))
	}
	if records[0].Kind() != types.KindQuery {
		t.Errorf("record kind = %q, want %q", records[0].Kind(), types.KindQuery)
	}
	if _, ok := records[0].TSDiff(); ok {
		t.Error("single record has ts_diff, want absent")
	}

	// Level raised to all, then restored to slow-only.
	want := []types.Level{types.LevelAll, types.LevelSlowOnly}
	if len(store.setLevelCalls) != 2 || store.setLevelCalls[0] != want[0] || store.setLevelCalls[1] != want[1] {
		t.Errorf("SetProfilingLevel calls = %v, want %v", store.setLevelCalls, want)
	}

	// No watermark existed, so the fetch must not filter by timestamp.
	if len(store.fetchCalls) != 1 || store.fetchCalls[0].hasAfter {
		t.Errorf("fetch calls = %+v, want one unfiltered fetch", store.fetchCalls)
	}
	if store.fetchCalls[0].skip != 0 {
		t.Errorf("fetch skip = %d, want 0 for prior level slow-only", store.fetchCalls[0].skip)
	}
}

// TestProfiler_TSDiff tests the timing delta between consecutive timestamped
// records: 10:00:00.000000 to 10:00:02.500000 is 2.5 seconds.
func TestProfiler_TSDiff(t *testing.T) {
	first := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	second := time.Date(2026, 8, 26, 10, 0, 2, 500000000, time.UTC)

	store := NewMockStore(types.LevelOff)
	store.AddEntry(queryEntry(first))
	store.AddEntry(queryEntry(second))

	records, err := Run(context.Background(), New(store), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Run() returned %d records, want 2", len(records))
	}

	if _, ok := records[0].TSDiff(); ok {
		t.Error("first record has ts_diff, want absent")
	}
	diff, ok := records[1].TSDiff()
	if !ok {
		t.Fatal("second record missing ts_diff")
	}
	if diff != 2.5 {
		t.Errorf("ts_diff = %v, want 2.5", diff)
	}
}

// TestProfiler_TSDiffSkipsUntimestamped tests that records without a
// timestamp neither receive a ts_diff nor reset the previous timestamp.
func TestProfiler_TSDiffSkipsUntimestamped(t *testing.T) {
	first := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	third := time.Date(2026, 8, 26, 10, 0, 1, 0, time.UTC)

	store := NewMockStore(types.LevelOff)
	store.AddEntry(queryEntry(first))
	store.AddEntry(types.RawEntry{Info: "insert test.users"}) // no timestamp
	store.AddEntry(queryEntry(third))

	records, err := Run(context.Background(), New(store), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Run() returned %d records, want 3", len(records))
	}

	if _, ok := records[1].TSDiff(); ok {
		t.Error("untimestamped record has ts_diff, want absent")
	}
	diff, ok := records[2].TSDiff()
	if !ok {
		t.Fatal("third record missing ts_diff")
	}
	if diff != 1.0 {
		t.Errorf("ts_diff = %v, want 1.0 (relative to the first record)", diff)
	}
}

// TestProfiler_SkipsOwnNoise tests that two leading entries are skipped when
// the previous level already captured everything.
func TestProfiler_SkipsOwnNoise(t *testing.T) {
	store := NewMockStore(types.LevelAll)

	p := New(store)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(store.fetchCalls) != 1 || store.fetchCalls[0].skip != 2 {
		t.Errorf("fetch calls = %+v, want one fetch with skip 2", store.fetchCalls)
	}
}

// TestProfiler_WatermarkFiltersFetch tests that the watermark recorded at
// Start bounds the fetch at Stop.
func TestProfiler_WatermarkFiltersFetch(t *testing.T) {
	watermark := time.Date(2026, 8, 26, 9, 59, 0, 0, time.UTC)
	store := NewMockStore(types.LevelOff).SetLatest(watermark)

	p := New(store)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(store.fetchCalls) != 1 {
		t.Fatalf("fetch calls = %d, want 1", len(store.fetchCalls))
	}
	call := store.fetchCalls[0]
	if !call.hasAfter || !call.after.Equal(watermark) {
		t.Errorf("fetch after = %v, %v, want %v, true", call.after, call.hasAfter, watermark)
	}
}

// TestProfiler_RestoresLevelOnFetchError tests that the fetch error
// propagates unmasked while the prior level is still restored.
func TestProfiler_RestoresLevelOnFetchError(t *testing.T) {
	fetchErr := errors.New("connection reset")
	store := NewMockStore(types.LevelSlowOnly).SetFetchError(fetchErr)

	p := New(store)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err := p.Stop(ctx)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Stop() error = %v, want wrapped %v", err, fetchErr)
	}

	if store.level != types.LevelSlowOnly {
		t.Errorf("profiling level = %s after failed drain, want slow-only restored", store.level)
	}
}

// TestProfiler_SkipsMalformedEntries tests that entries without info text
// are skipped while the rest of the stream is still classified.
func TestProfiler_SkipsMalformedEntries(t *testing.T) {
	store := NewMockStore(types.LevelOff)
	store.AddEntry(types.RawEntry{Fields: map[string]any{"client": "127.0.0.1"}})
	store.AddEntry(queryEntry(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)))

	records, err := Run(context.Background(), New(store), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Run() returned %d records, want 1 (malformed entry skipped)", len(records))
	}
	if records[0].Kind() != types.KindQuery {
		t.Errorf("record kind = %q, want %q", records[0].Kind(), types.KindQuery)
	}
}

// TestProfiler_Mark tests that markers reach the store only while capturing.
func TestProfiler_Mark(t *testing.T) {
	store := NewMockStore(types.LevelOff)
	p := New(store)
	ctx := context.Background()

	if err := p.Mark(ctx, "too-early"); err == nil {
		t.Error("Mark() before Start succeeded, want error")
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Mark(ctx, "phase1"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if len(store.markerCalls) != 1 || store.markerCalls[0] != "phase1" {
		t.Errorf("marker calls = %v, want [phase1]", store.markerCalls)
	}
}

// TestProfiler_StateMachine tests the invalid transitions.
func TestProfiler_StateMachine(t *testing.T) {
	store := NewMockStore(types.LevelOff)
	p := New(store)
	ctx := context.Background()

	if _, err := p.Stop(ctx); err == nil {
		t.Error("Stop() on idle session succeeded, want error")
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	if _, err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := p.Stop(ctx); err == nil {
		t.Error("second Stop() succeeded, want error")
	}
}

// TestProfiler_StartFailureLeavesLevelAlone tests that a failure reading the
// current level aborts Start before anything is changed.
func TestProfiler_StartFailureLeavesLevelAlone(t *testing.T) {
	store := NewMockStore(types.LevelSlowOnly).SetLevelError(errors.New("no reachable servers"))

	p := New(store)
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded, want error")
	}
	if len(store.setLevelCalls) != 0 {
		t.Errorf("SetProfilingLevel calls = %v, want none", store.setLevelCalls)
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %q, want %q", p.State(), StateIdle)
	}
}

// TestRun_FnErrorTakesPrecedence tests that Run still drains and restores
// when the bracketed function fails, and reports the function's error.
func TestRun_FnErrorTakesPrecedence(t *testing.T) {
	store := NewMockStore(types.LevelSlowOnly)
	store.AddEntry(queryEntry(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)))

	fnErr := fmt.Errorf("instrumented run failed")
	records, err := Run(context.Background(), New(store), func(ctx context.Context) error {
		return fnErr
	})
	if !errors.Is(err, fnErr) {
		t.Fatalf("Run() error = %v, want %v", err, fnErr)
	}
	if len(records) != 1 {
		t.Errorf("Run() returned %d records, want 1 despite fn error", len(records))
	}
	if store.level != types.LevelSlowOnly {
		t.Errorf("profiling level = %s, want slow-only restored", store.level)
	}
}

// TestRun_RestoresLevelOnPanic tests that a panic in the bracketed function
// still drains the session and restores the prior profiling level.
func TestRun_RestoresLevelOnPanic(t *testing.T) {
	store := NewMockStore(types.LevelSlowOnly)
	p := New(store)

	defer func() {
		if recover() == nil {
			t.Fatal("panic did not propagate out of Run")
		}
		if store.level != types.LevelSlowOnly {
			t.Errorf("profiling level = %s after panic, want slow-only restored", store.level)
		}
		if p.State() != StateDrained {
			t.Errorf("State() = %q after panic, want %q", p.State(), StateDrained)
		}
	}()

	_, _ = Run(context.Background(), p, func(ctx context.Context) error {
		panic("instrumented run exploded")
	})
}

// TestNoop tests that the inert session variant yields nothing and can be
// driven through the full lifecycle without error.
func TestNoop(t *testing.T) {
	var s Session = NewNoop()
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Mark(ctx, "ignored"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	records, err := s.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Stop() returned %d records, want 0", len(records))
	}
	if got := s.Records(); len(got) != 0 {
		t.Errorf("Records() returned %d records, want 0", len(got))
	}
}
