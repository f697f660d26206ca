package audio

import "time"

// Format describes uncompressed signed little-endian PCM
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
	FrameSize     int // bytes per frame (all channels)
}

// PCM16Mono is the only format used for capture and encoding.
// It is never negotiated with the device at runtime.
var PCM16Mono = Format{
	SampleRate:    44100,
	BitsPerSample: 16,
	Channels:      1,
	FrameSize:     2,
}

// ByteRate returns the number of bytes per second of audio
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize
}

// Frames returns the number of whole frames in n bytes
func (f Format) Frames(n int) int {
	if f.FrameSize <= 0 {
		return n
	}
	return n / f.FrameSize
}

// Duration returns the playback duration of n bytes of audio
func (f Format) Duration(n int) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}
