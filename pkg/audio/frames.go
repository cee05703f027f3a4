package audio

import "iter"

// Frames splits a PCM buffer into fixed-size frames for streaming delivery.
//
// Frames is a plain value over the source buffer: it holds no cursor, so
// ranging over [Frames.All] twice yields the same sequence both times. Every
// frame is exactly [Frames.FrameBytes] long except the last one, which holds
// the remainder when the buffer is not an exact multiple. Concatenating all
// frames in order reproduces the buffer byte for byte.
type Frames struct {
	buf        []byte
	frameBytes int
}

// SplitFrames returns the frame sequence for buf with frameSamples samples of
// bytesPerSample bytes each. Non-positive arguments fall back to a single
// sample per frame and 2-byte samples respectively.
func SplitFrames(buf []byte, frameSamples, bytesPerSample int) Frames {
	if frameSamples <= 0 {
		frameSamples = 1
	}
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	return Frames{buf: buf, frameBytes: frameSamples * bytesPerSample}
}

// FrameBytes returns the byte length of every full frame.
func (f Frames) FrameBytes() int { return f.frameBytes }

// Len returns the number of frames the sequence yields. An empty buffer has
// zero frames.
func (f Frames) Len() int {
	if f.frameBytes <= 0 {
		return 0
	}
	return (len(f.buf) + f.frameBytes - 1) / f.frameBytes
}

// At returns frame i. It panics if i is out of range, like a slice index.
func (f Frames) At(i int) []byte {
	start := i * f.frameBytes
	end := min(start+f.frameBytes, len(f.buf))
	if i < 0 || start >= len(f.buf) {
		panic("audio: frame index out of range")
	}
	return f.buf[start:end:end]
}

// All returns an iterator over the frames. The yielded slices alias the source
// buffer and are capped so appending to them never clobbers the next frame.
func (f Frames) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		n := f.Len()
		for i := range n {
			if !yield(f.At(i)) {
				return
			}
		}
	}
}
