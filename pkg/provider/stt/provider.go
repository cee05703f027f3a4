// Package stt defines the Recognizer interface for Speech-to-Text backends.
//
// A recognizer wraps a batch transcription service: it receives one complete
// utterance of canonical PCM audio (16 kHz, 16-bit, mono, little-endian) and
// returns the recognised text. Streaming partials are not modelled; callers
// buffer a whole turn before recognising it.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Recognizer is the abstraction over any batch STT backend.
type Recognizer interface {
	// Recognize transcribes pcm in the given BCP-47 language (e.g. "ru-RU").
	// pcm is raw 16 kHz 16-bit mono little-endian audio without a container.
	//
	// An utterance with no recognisable speech returns "" and a nil error.
	// Transport, authentication and service failures return a non-nil error;
	// the returned text is then always "".
	Recognize(ctx context.Context, pcm []byte, language string) (string, error)
}
