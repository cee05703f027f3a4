// Package journal records completed gateway turns.
//
// A turn is one recognition (audio in, transcript out) or one synthesis (text
// in, audio out) handled by a session. Stores are append-only; the gateway
// never reads the journal back. Write failures are reported to the caller but
// must not affect the turn itself.
package journal

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Turn kinds.
const (
	KindRecognize  = "recognize"
	KindSynthesize = "synthesize"
)

// Turn is one completed request/response cycle within a session.
type Turn struct {
	// SessionID identifies the client connection the turn belongs to.
	SessionID string

	// Kind is [KindRecognize] or [KindSynthesize].
	Kind string

	// Language is the language the remote call was made with.
	Language string

	// Voice is the synthesis voice. Empty for recognition turns.
	Voice string

	// Text is the transcript (recognition) or the input text (synthesis).
	Text string

	// AudioBytes is the PCM size sent (recognition) or received (synthesis).
	AudioBytes int

	// Duration is the remote call latency, gate wait excluded.
	Duration time.Duration

	// Err holds the remote failure message. Empty on success.
	Err string

	// At is when the turn completed.
	At time.Time
}

// Store persists turns. Implementations must be safe for concurrent use.
type Store interface {
	Record(ctx context.Context, turn Turn) error
	Close() error
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore keeps turns in memory.
type MemStore struct {
	mu    sync.Mutex
	turns []Turn
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Record implements [Store].
func (m *MemStore) Record(_ context.Context, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

// Turns returns a copy of all recorded turns in insertion order.
func (m *MemStore) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.turns)
}

// Close implements [Store]. It is a no-op.
func (m *MemStore) Close() error { return nil }
