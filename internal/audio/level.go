package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
)

// LevelFunc receives the loudness of each captured chunk, in [0,1].
// It runs on the capture goroutine and must not block.
type LevelFunc func(level float64)

// ComputeLevel returns the RMS loudness of chunk[:length] interpreted as
// little-endian 16-bit signed samples, normalized by 32768 and clamped to [0,1].
// A trailing odd byte is ignored.
func ComputeLevel(chunk []byte, length int) float64 {
	if length > len(chunk) {
		length = len(chunk)
	}
	sampleCount := length / 2
	if sampleCount <= 0 {
		return 0.0
	}

	var sumSquares float64
	for i := 0; i < sampleCount*2; i += 2 {
		sample := int16(binary.LittleEndian.Uint16(chunk[i : i+2]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}

	rms := math.Sqrt(sumSquares / float64(sampleCount))
	return math.Min(1.0, math.Max(0.0, rms))
}

// notifyLevel delivers a level to fn, discarding any panic so a misbehaving
// listener cannot stop capture.
func notifyLevel(fn LevelFunc, level float64) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Level callback panicked", "panic", r)
		}
	}()
	fn(level)
}
