// Package mock provides a test double for the stt.Recognizer interface.
//
// Use Recognizer to return controlled transcripts and to inspect which audio
// and language each call received. Set Hook to observe or block calls while
// they are in flight, e.g. to verify that callers serialise requests.
//
// Example:
//
//	r := &mock.Recognizer{Text: "привет"}
//	text, _ := r.Recognize(ctx, pcm, "ru-RU")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/salutespeech-gateway/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// PCM is a copy of the audio passed to Recognize.
	PCM []byte
	// Language is the language tag passed to Recognize.
	Language string
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Text is returned by every successful Recognize call.
	Text string

	// Err, if non-nil, is returned by every Recognize call together with "".
	Err error

	// Hook, if set, runs inside Recognize after the call is recorded and before
	// it returns. Tests use it to block or to detect overlapping calls.
	Hook func(ctx context.Context)

	// --- Call records ---

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall

	inFlight    int
	maxInFlight int
}

// Recognize records the call and returns Text, Err.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte, language string) (string, error) {
	r.mu.Lock()
	r.RecognizeCalls = append(r.RecognizeCalls, RecognizeCall{
		Ctx:      ctx,
		PCM:      append([]byte(nil), pcm...),
		Language: language,
	})
	r.inFlight++
	r.maxInFlight = max(r.maxInFlight, r.inFlight)
	hook, text, err := r.Hook, r.Text, r.Err
	r.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	if err != nil {
		return "", err
	}
	return text, nil
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (r *Recognizer) Calls() []RecognizeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecognizeCall, len(r.RecognizeCalls))
	copy(out, r.RecognizeCalls)
	return out
}

// MaxInFlight returns the highest number of Recognize calls that were running
// at the same time. Thread-safe.
func (r *Recognizer) MaxInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight
}

// Reset clears all recorded calls. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecognizeCalls = nil
	r.maxInFlight = 0
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
