// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to return controlled PCM and to verify that the correct
// text, language and voice are passed to the TTS backend.
//
// Example:
//
//	s := &mock.Synthesizer{
//	    Audio:            make([]byte, 4800),
//	    ListVoicesResult: []tts.VoiceProfile{{ID: "Ost_24000", Name: "Ost"}},
//	}
//	pcm, _ := s.Synthesize(ctx, "hello", "ru-RU", "Ost_24000")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Language is the language tag passed to Synthesize.
	Language string
	// Voice is the voice identifier passed to Synthesize.
	Voice string
}

// ListVoicesCall records a single invocation of ListVoices.
type ListVoicesCall struct {
	// Ctx is the context passed to ListVoices.
	Ctx context.Context
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is returned by every successful Synthesize call.
	Audio []byte

	// Err, if non-nil, is returned by every Synthesize call together with nil audio.
	Err error

	// OutputFormat is returned by Format. Zero means 24 kHz 16-bit mono.
	OutputFormat tts.Format

	// Hook, if set, runs inside Synthesize after the call is recorded and
	// before it returns.
	Hook func(ctx context.Context)

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCalls records every call to ListVoices in order.
	ListVoicesCalls []ListVoicesCall

	inFlight    int
	maxInFlight int
}

// Synthesize records the call and returns Audio, Err.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	s.mu.Lock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Language: language, Voice: voice})
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	hook, audio, err := s.Hook, s.Audio, s.Err
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Format returns OutputFormat, defaulting to 24 kHz 16-bit mono.
func (s *Synthesizer) Format() tts.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OutputFormat == (tts.Format{}) {
		return tts.Format{SampleRate: 24000, Width: 2, Channels: 1}
	}
	return s.OutputFormat
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListVoicesCalls = append(s.ListVoicesCalls, ListVoicesCall{Ctx: ctx})
	return s.ListVoicesResult, s.ListVoicesErr
}

// Calls returns a snapshot of the recorded Synthesize calls. Thread-safe.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.SynthesizeCalls))
	copy(out, s.SynthesizeCalls)
	return out
}

// MaxInFlight returns the highest number of Synthesize calls that were running
// at the same time. Thread-safe.
func (s *Synthesizer) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
	s.ListVoicesCalls = nil
	s.maxInFlight = 0
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
