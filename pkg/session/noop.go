package session

import (
	"context"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// Noop is the inert session variant: it never touches a store and always
// yields an empty result sequence. Use it when profiling is disabled so
// call sites stay uniform.
type Noop struct{}

// NewNoop creates an inert session.
func NewNoop() *Noop {
	return &Noop{}
}

// Start implements Session and does nothing.
func (*Noop) Start(ctx context.Context) error {
	return nil
}

// Mark implements Session and does nothing.
func (*Noop) Mark(ctx context.Context, text string) error {
	return nil
}

// Stop implements Session and yields no records.
func (*Noop) Stop(ctx context.Context) ([]*types.Record, error) {
	return nil, nil
}

// Records implements Session.
func (*Noop) Records() []*types.Record {
	return nil
}
