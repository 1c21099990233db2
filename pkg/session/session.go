// Package session brackets an instrumented run with MongoDB profiling.
//
// A session moves through Idle → Capturing → Drained. Start raises the
// profiling level after recording what to restore and where the existing
// profile stream ends; Stop restores the level exactly once, drains the
// entries captured in between, and classifies each into a typed record.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/mongo-profiler/pkg/classifier"
	"github.com/supporttools/mongo-profiler/pkg/logger"
	"github.com/supporttools/mongo-profiler/pkg/types"
)

// State tracks the harness lifecycle.
type State string

const (
	// StateIdle means the session has not started.
	StateIdle State = "idle"

	// StateCapturing means profiling is raised and operations are recorded.
	StateCapturing State = "capturing"

	// StateDrained means the session is closed and records are available.
	StateDrained State = "drained"
)

// Session is the harness interface. The real implementation is Profiler;
// Noop keeps call sites uniform when profiling is not desired.
type Session interface {
	// Start records the current profiling level and the watermark, then
	// raises the level to capture all operations.
	Start(ctx context.Context) error

	// Mark stamps a labeled marker into the captured stream.
	Mark(ctx context.Context, text string) error

	// Stop restores the previous profiling level, drains everything
	// captured since Start, and returns the classified records in order.
	Stop(ctx context.Context) ([]*types.Record, error)

	// Records returns the result of the last Stop.
	Records() []*types.Record
}

// Profiler is the real session harness, driving a ProfileStore.
type Profiler struct {
	store types.ProfileStore
	log   *logrus.Entry

	state        State
	prevLevel    types.Level
	watermark    time.Time
	hasWatermark bool
	records      []*types.Record
}

// New creates an idle session harness on the given store.
func New(store types.ProfileStore) *Profiler {
	return &Profiler{
		store: store,
		log:   logger.WithFields(logrus.Fields{"component": "session"}),
		state: StateIdle,
	}
}

// State returns the current lifecycle state.
func (p *Profiler) State() State {
	return p.state
}

// Start implements Session. On failure nothing is left raised: the level is
// only changed after the previous level and watermark are safely recorded.
func (p *Profiler) Start(ctx context.Context) error {
	if p.state != StateIdle {
		return fmt.Errorf("cannot start session in state %q", p.state)
	}

	level, err := p.store.ProfilingLevel(ctx)
	if err != nil {
		return fmt.Errorf("read profiling level: %w", err)
	}
	p.prevLevel = level

	watermark, ok, err := p.store.LatestEntryTime(ctx)
	if err != nil {
		return fmt.Errorf("read profile watermark: %w", err)
	}
	p.watermark, p.hasWatermark = watermark, ok

	if err := p.store.SetProfilingLevel(ctx, types.LevelAll); err != nil {
		return fmt.Errorf("raise profiling level: %w", err)
	}

	p.state = StateCapturing
	p.log.WithFields(logrus.Fields{
		"previousLevel": p.prevLevel.String(),
		"hasWatermark":  p.hasWatermark,
	}).Debug("Profiling enabled")
	return nil
}

// Mark implements Session.
func (p *Profiler) Mark(ctx context.Context, text string) error {
	if p.state != StateCapturing {
		return fmt.Errorf("cannot mark in state %q", p.state)
	}
	return p.store.InsertMarker(ctx, text)
}

// Stop implements Session. The previous profiling level is restored exactly
// once per session, even when draining fails mid-stream; a restore failure
// is logged rather than returned so it never masks a fetch error.
func (p *Profiler) Stop(ctx context.Context) ([]*types.Record, error) {
	if p.state != StateCapturing {
		return nil, fmt.Errorf("cannot stop session in state %q", p.state)
	}
	p.state = StateDrained

	defer func() {
		if err := p.store.SetProfilingLevel(ctx, p.prevLevel); err != nil {
			p.log.WithError(err).Warnf("Failed to restore profiling level to %s", p.prevLevel)
		}
	}()

	// When the previous level already captured everything, the first two
	// entries are the harness's own level query: skip them.
	skip := 0
	if p.prevLevel == types.LevelAll {
		skip = 2
	}

	entries, err := p.store.FetchEntries(ctx, p.watermark, p.hasWatermark, skip)
	if err != nil {
		return nil, fmt.Errorf("fetch profile entries: %w", err)
	}

	var prevTS time.Time
	hasPrev := false
	for _, entry := range entries {
		rec, err := classifier.Classify(entry)
		if err != nil {
			if errors.Is(err, classifier.ErrMalformedEntry) {
				p.log.WithError(err).Warn("Skipping malformed profile entry")
				continue
			}
			return nil, fmt.Errorf("classify profile entry: %w", err)
		}
		if ts, ok := rec.Timestamp(); ok {
			if hasPrev {
				rec.Set("ts_diff", ts.Sub(prevTS).Seconds())
			}
			prevTS, hasPrev = ts, true
		}
		p.records = append(p.records, rec)
	}

	p.log.Debugf("Session drained: %d records", len(p.records))
	return p.records, nil
}

// Records implements Session.
func (p *Profiler) Records() []*types.Record {
	return p.records
}

// Run brackets fn with a session: Start, run fn, always Stop. Stop runs on
// the way out even when fn panics, so the profiling level is never left
// raised. The records drained on the way out are returned even when fn
// failed, and a failure from fn takes precedence over a failure from Stop.
func Run(ctx context.Context, s Session, fn func(context.Context) error) (records []*types.Record, err error) {
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		drained, stopErr := s.Stop(ctx)
		records = drained
		if err == nil {
			err = stopErr
		}
	}()
	return nil, fn(ctx)
}
