package audio

import "time"

// Canonical recognition format: 16 kHz, 16-bit, mono. Every inbound chunk is
// normalised to this before it is buffered for the recognizer.
const (
	CanonicalRate     = 16000
	CanonicalWidth    = 2
	CanonicalChannels = 1
)

// AudioFrame is a contiguous slice of little-endian PCM audio tagged with its
// format. Data always holds a whole number of samples, i.e. its length is a
// multiple of Width × Channels.
type AudioFrame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for recognition, 24000 for synthesis).
	SampleRate int

	// Width is the sample width in bytes (1, 2, 3 or 4).
	Width int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks the position of this frame relative to stream start.
	Timestamp time.Duration
}

// BytesPerFrame returns Width × Channels, the size of one multi-channel sample.
func (f AudioFrame) BytesPerFrame() int {
	return f.Width * f.Channels
}

// Duration returns the playback length of the frame. It returns zero when the
// format is incomplete.
func (f AudioFrame) Duration() time.Duration {
	bpf := f.BytesPerFrame()
	if f.SampleRate <= 0 || bpf <= 0 {
		return 0
	}
	samples := len(f.Data) / bpf
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
