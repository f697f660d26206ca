package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures from the default microphone through miniaudio
type MalgoSource struct {
	format Format

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buffer bytes.Buffer

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMalgoSource creates an unopened microphone source
func NewMalgoSource(format Format) *MalgoSource {
	return &MalgoSource{
		format: format,
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Open initializes the audio context and starts the capture device
func (s *MalgoSource) Open() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: audio context init failed: %w", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.format.Channels)
	deviceConfig.SampleRate = uint32(s.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onRecvFrames := func(_, pSample []byte, _ uint32) {
		s.mu.Lock()
		s.buffer.Write(pSample)
		s.mu.Unlock()

		select {
		case s.ready <- struct{}{}:
		default:
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: capture device init failed: %w", ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: capture start failed: %w", ErrDeviceUnavailable, err)
	}

	s.mu.Lock()
	s.ctx = ctx
	s.device = device
	s.mu.Unlock()

	slog.Debug("Microphone opened", "sample_rate", s.format.SampleRate, "channels", s.format.Channels)
	return nil
}

// Read returns captured bytes, blocking until the device delivers some
func (s *MalgoSource) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		if s.buffer.Len() > 0 {
			n, _ := s.buffer.Read(p)
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.closed:
			s.mu.Lock()
			n, _ := s.buffer.Read(p)
			s.mu.Unlock()
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
	}
}

// Close stops the device and releases the audio context
func (s *MalgoSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		device, ctx := s.device, s.ctx
		s.device, s.ctx = nil, nil
		s.mu.Unlock()

		// Uninit waits for the data callback, which takes s.mu, so it runs unlocked.
		if device != nil {
			device.Stop()
			device.Uninit()
		}
		if ctx != nil {
			ctx.Uninit()
			ctx.Free()
		}
		slog.Debug("Microphone closed")
	})
	return nil
}
