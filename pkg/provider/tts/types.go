package tts

// Format describes the PCM produced by a Synthesizer.
type Format struct {
	// SampleRate in Hz (e.g. 24000).
	SampleRate int

	// Width is the sample width in bytes.
	Width int

	// Channels: 1 for mono.
	Channels int
}

// VoiceProfile describes one synthesis voice offered by a provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g. "Ost_24000").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the BCP-47 tag the voice speaks natively.
	Language string

	// Metadata holds provider-specific voice attributes (gender, sample rate, etc.).
	Metadata map[string]string
}
