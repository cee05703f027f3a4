package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate, sample width and channel count of an
// audio stream.
type Format struct {
	SampleRate int
	Width      int
	Channels   int
}

// Canonical is the format every recognition buffer is kept in.
var Canonical = Format{
	SampleRate: CanonicalRate,
	Width:      CanonicalWidth,
	Channels:   CanonicalChannels,
}

// String returns a human-readable description, e.g. "48000Hz 24bit stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Width, f.Channels)
}

// FormatConverter converts AudioFrames to a 16-bit mono target format. It logs
// a warning on the first format mismatch and on the first misaligned frame.
// Create one per stream; not designed for shared use across goroutines.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Normalize converts frame to the [Canonical] recognition format. It is the
// stateless counterpart of [FormatConverter.Convert] and never logs.
func Normalize(frame AudioFrame) AudioFrame {
	return convert(frame, Canonical)
}

// Convert converts a frame to the target format. If the source format already
// matches the target, the frame is returned unchanged (zero allocation).
// Trailing bytes that do not form a whole sample are discarded.
// Conversion order: sample width, then channel downmix, then resample.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	if bpf := frame.BytesPerFrame(); bpf > 0 && len(frame.Data)%bpf != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: partial sample in PCM data, truncating",
				"bytes", len(frame.Data),
				"format", formatString(frame.SampleRate, frame.Width, frame.Channels),
			)
		})
	}

	if frame.SampleRate != c.Target.SampleRate || frame.Width != c.Target.Width || frame.Channels != c.Target.Channels {
		c.warnedMismatch.Do(func() {
			slog.Debug("audio format mismatch: converting",
				"from", formatString(frame.SampleRate, frame.Width, frame.Channels),
				"to", c.Target.String(),
			)
		})
	}
	return convert(frame, c.Target)
}

func convert(frame AudioFrame, target Format) AudioFrame {
	width := frame.Width
	if width <= 0 {
		width = 2
	}
	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := frame.SampleRate
	if rate <= 0 {
		rate = target.SampleRate
	}

	pcm := frame.Data
	if bpf := width * channels; len(pcm)%bpf != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%bpf]
	}

	// Fast path: source matches target.
	if rate == target.SampleRate && width == target.Width && channels == target.Channels {
		return AudioFrame{
			Data:       pcm,
			SampleRate: rate,
			Width:      width,
			Channels:   channels,
			Timestamp:  frame.Timestamp,
		}
	}

	// Step 1: sample width.
	if width != 2 {
		pcm = ToPCM16(pcm, width)
		width = 2
	}

	// Step 2: channel downmix.
	if channels > 1 && target.Channels == 1 {
		pcm = DownmixToMono16(pcm, channels)
		channels = 1
	}

	// Step 3: resample.
	if rate != target.SampleRate && channels == 1 {
		pcm = ResampleMono16(pcm, rate, target.SampleRate)
		rate = target.SampleRate
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: rate,
		Width:      width,
		Channels:   channels,
		Timestamp:  frame.Timestamp,
	}
}

// ToPCM16 converts signed little-endian PCM of the given sample width (1, 3 or
// 4 bytes) to 16-bit. Narrower samples are scaled up, wider samples keep their
// most significant 16 bits. Width 2 returns the input unchanged; unsupported
// widths return nil.
func ToPCM16(pcm []byte, width int) []byte {
	switch width {
	case 2:
		return pcm
	case 1:
		out := make([]byte, len(pcm)*2)
		for i, b := range pcm {
			s := int16(int8(b)) << 8
			out[i*2] = byte(s)
			out[i*2+1] = byte(s >> 8)
		}
		return out
	case 3, 4:
		samples := len(pcm) / width
		out := make([]byte, samples*2)
		for i := range samples {
			src := i*width + width - 2
			out[i*2] = pcm[src]
			out[i*2+1] = pcm[src+1]
		}
		return out
	default:
		return nil
	}
}

// DownmixToMono16 averages all channels of each interleaved 16-bit frame into
// a single mono sample. Uses int32 arithmetic to prevent overflow and clamps
// to int16 range.
func DownmixToMono16(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			off := i*frameBytes + ch*2
			sum += int32(int16(pcm[off]) | int16(pcm[off+1])<<8)
		}
		avg := sum / int32(channels)

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	return DownmixToMono16(pcm, 2)
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// formatString returns a human-readable string for a stream format,
// e.g. "48000Hz 16bit stereo".
func formatString(rate, width, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %dbit %s", rate, width*8, ch)
}
