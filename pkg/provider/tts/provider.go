// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A synthesizer wraps a batch speech synthesis service: it receives the full
// text of one utterance and returns the complete raw PCM rendition. Callers
// split the result into frames for delivery.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer is the abstraction over any batch TTS backend.
type Synthesizer interface {
	// Synthesize renders text in the given language with the named voice and
	// returns raw little-endian PCM. The output format is fixed per provider;
	// see [Synthesizer.Format].
	//
	// Failures return a nil slice and a non-nil error.
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)

	// Format reports the PCM format Synthesize produces.
	Format() Format

	// ListVoices returns all voice profiles available from this provider. The
	// list is suitable for advertising capabilities to clients.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
