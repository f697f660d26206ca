package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// Waveform selects what a SyntheticSource generates
type Waveform string

const (
	WaveformSilence Waveform = "silence"
	WaveformSine    Waveform = "sine"
)

// SyntheticSource generates PCM at real-time pace without any hardware.
// It stands in for the microphone on machines without one.
type SyntheticSource struct {
	format    Format
	waveform  Waveform
	frequency float64
	amplitude float64

	start    time.Time
	produced int
	phase    float64

	opened    bool
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSyntheticSource creates a generator. amplitude is a fraction of full scale.
func NewSyntheticSource(format Format, waveform Waveform, frequency, amplitude float64) *SyntheticSource {
	return &SyntheticSource{
		format:    format,
		waveform:  waveform,
		frequency: frequency,
		amplitude: math.Min(1.0, math.Max(0.0, amplitude)),
		closed:    make(chan struct{}),
	}
}

func (s *SyntheticSource) Open() error {
	select {
	case <-s.closed:
		return fmt.Errorf("%w: synthetic source already closed", ErrDeviceUnavailable)
	default:
	}
	s.start = time.Now()
	s.opened = true
	return nil
}

// Read fills whole frames of p once the wall clock has caught up with them
func (s *SyntheticSource) Read(p []byte) (int, error) {
	if !s.opened {
		return 0, fmt.Errorf("synthetic source not opened")
	}
	n := len(p) - len(p)%s.format.FrameSize
	if n == 0 {
		return 0, io.ErrShortBuffer
	}

	due := s.start.Add(s.format.Duration(s.produced + n))
	timer := time.NewTimer(time.Until(due))
	defer timer.Stop()

	select {
	case <-s.closed:
		return 0, io.EOF
	case <-timer.C:
	}

	s.fill(p[:n])
	s.produced += n
	return n, nil
}

func (s *SyntheticSource) fill(p []byte) {
	if s.waveform != WaveformSine || s.amplitude == 0 {
		clear(p)
		return
	}

	step := 2 * math.Pi * s.frequency / float64(s.format.SampleRate)
	peak := s.amplitude * math.MaxInt16
	for i := 0; i+1 < len(p); i += s.format.FrameSize {
		sample := int16(math.Round(peak * math.Sin(s.phase)))
		binary.LittleEndian.PutUint16(p[i:], uint16(sample))
		s.phase = math.Mod(s.phase+step, 2*math.Pi)
	}
}

func (s *SyntheticSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
