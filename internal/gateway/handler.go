// Package gateway terminates Wyoming sessions and turns them into remote
// speech calls.
//
// A [Handler] is shared by every connection of a process. It owns the
// process-wide [Gate], the cached capability record and the current
// [Settings]. Each connection gets its own [Session], driven by one goroutine
// that reads events, updates session state and writes responses in order.
//
// Remote failures never end a connection: recognition yields an empty
// transcript and synthesis yields an empty audio stream.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MrWong99/salutespeech-gateway/internal/journal"
	"github.com/MrWong99/salutespeech-gateway/internal/observe"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/stt"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"
	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

// Settings are the per-turn defaults a session falls back to. They may be
// swapped at runtime with [Handler.UpdateSettings]; running turns keep the
// values they started with.
type Settings struct {
	// Language is the default recognition and synthesis language.
	Language string

	// Voice is the default synthesis voice.
	Voice string

	// FrameSamples is the number of samples per outbound audio chunk.
	FrameSamples int

	// MaxAudioBytes caps the recognition buffer of one turn. Zero means
	// unbounded.
	MaxAudioBytes int

	// ReportErrors makes remote failures visible to the client as an error
	// event sent before the empty result.
	ReportErrors bool

	// DumpDir, when set, receives a WAV file for every turn's audio.
	DumpDir string
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Language:     "ru-RU",
		Voice:        "Ost_24000",
		FrameSamples: 1024,
	}
}

// Option is a functional option for configuring a Handler.
type Option func(*Handler)

// WithSettings sets the initial per-turn defaults.
func WithSettings(s Settings) Option {
	return func(h *Handler) {
		h.settings.Store(&s)
	}
}

// WithInfo sets the capability record answered to describe events.
func WithInfo(info wyoming.Info) Option {
	return func(h *Handler) {
		h.info = info
	}
}

// WithGate shares an existing gate instead of creating a private one.
func WithGate(g *Gate) Option {
	return func(h *Handler) {
		h.gate = g
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithJournal records every completed turn in store.
func WithJournal(store journal.Store) Option {
	return func(h *Handler) {
		h.journal = store
	}
}

// WithProviderName sets the provider label on metrics. Defaults to "salute".
func WithProviderName(name string) Option {
	return func(h *Handler) {
		h.provider = name
	}
}

// Handler serves Wyoming sessions. It is safe for concurrent use.
type Handler struct {
	recognizer  stt.Recognizer
	synthesizer tts.Synthesizer
	gate        *Gate
	info        wyoming.Info
	metrics     *observe.Metrics
	journal     journal.Store
	provider    string
	settings    atomic.Pointer[Settings]
}

// NewHandler creates a Handler that sends recognition to rec and synthesis to
// syn. Both must be non-nil.
func NewHandler(rec stt.Recognizer, syn tts.Synthesizer, opts ...Option) (*Handler, error) {
	if rec == nil {
		return nil, errors.New("gateway: recognizer must not be nil")
	}
	if syn == nil {
		return nil, errors.New("gateway: synthesizer must not be nil")
	}
	h := &Handler{
		recognizer:  rec,
		synthesizer: syn,
		provider:    "salute",
		info:        wyoming.NewInfo(nil, nil),
	}
	for _, o := range opts {
		o(h)
	}
	if h.settings.Load() == nil {
		s := DefaultSettings()
		h.settings.Store(&s)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.gate == nil {
		h.gate = NewGate(h.metrics)
	}
	if s := h.Settings(); s.FrameSamples <= 0 {
		return nil, fmt.Errorf("gateway: frame samples must be positive, got %d", s.FrameSamples)
	}
	return h, nil
}

// Settings returns the current per-turn defaults.
func (h *Handler) Settings() Settings {
	return *h.settings.Load()
}

// UpdateSettings replaces the per-turn defaults. Sessions pick up the new
// values at their next reset.
func (h *Handler) UpdateSettings(s Settings) {
	h.settings.Store(&s)
}

// Serve runs one session over rw until the peer disconnects, a malformed
// event arrives or ctx is cancelled. A clean disconnect returns nil. When rw
// is an io.Closer it is closed on ctx cancellation to unblock reads.
func (h *Handler) Serve(ctx context.Context, rw io.ReadWriter) error {
	if c, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	h.metrics.ActiveSessions.Add(ctx, 1)
	defer h.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	s := newSession(h, uuid.NewString(), wyoming.NewConn(rw))
	err := s.run(ctx)
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return err
}
