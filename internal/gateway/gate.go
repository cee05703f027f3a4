package gateway

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/salutespeech-gateway/internal/observe"
)

// Gate serializes remote speech calls across all sessions of a process. At
// most one holder exists at any time. Waiting honours context cancellation, so
// a closing connection never stays parked behind another session's turn.
type Gate struct {
	sem     *semaphore.Weighted
	metrics *observe.Metrics
}

// NewGate returns an open gate. Wait times are recorded on m.GateWait when m
// is non-nil.
func NewGate(m *observe.Metrics) *Gate {
	return &Gate{sem: semaphore.NewWeighted(1), metrics: m}
}

// Acquire blocks until the gate is free or ctx is done. On success the caller
// must invoke the returned release function exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.GateWait.Record(ctx, time.Since(start).Seconds())
	}
	return func() { g.sem.Release(1) }, nil
}
