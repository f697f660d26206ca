package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/audiolibrelab/echonote/internal/config"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo     BackendType = "malgo"
	BackendTypeSynthetic BackendType = "synthetic"
	BackendTypeAuto      BackendType = "auto"
)

// Backend creates capture sources of one kind
type Backend interface {
	// Create a new unopened source; every recording gets its own
	NewSource() Source

	// Check that the backend can be initialized on this machine
	Probe() error

	// Get the backend type
	GetType() BackendType
}

// NewBackend creates the backend selected by configuration
func NewBackend(cfg config.AudioConfig) Backend {
	switch determineBackend(cfg) {
	case BackendTypeSynthetic:
		return &SyntheticBackend{
			Waveform:  Waveform(cfg.Synthetic.Waveform),
			Frequency: cfg.Synthetic.Frequency,
			Amplitude: cfg.Synthetic.Amplitude,
		}
	default:
		return &MalgoBackend{}
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg config.AudioConfig) BackendType {
	switch strings.ToLower(cfg.Backend) {
	case "synthetic":
		return BackendTypeSynthetic
	case "malgo", "auto", "":
		return BackendTypeMalgo
	}
	return BackendTypeMalgo
}

// GetAvailableBackends returns the backends compiled into this binary
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo, BackendTypeSynthetic}
}

// MalgoBackend records from the system default microphone
type MalgoBackend struct{}

func (b *MalgoBackend) NewSource() Source {
	return NewMalgoSource(PCM16Mono)
}

func (b *MalgoBackend) Probe() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	ctx.Uninit()
	ctx.Free()
	return nil
}

func (b *MalgoBackend) GetType() BackendType {
	return BackendTypeMalgo
}

// SyntheticBackend generates audio instead of recording it
type SyntheticBackend struct {
	Waveform  Waveform
	Frequency float64
	Amplitude float64
}

func (b *SyntheticBackend) NewSource() Source {
	waveform := b.Waveform
	if waveform == "" {
		waveform = WaveformSilence
	}
	return NewSyntheticSource(PCM16Mono, waveform, b.Frequency, b.Amplitude)
}

func (b *SyntheticBackend) Probe() error {
	return nil
}

func (b *SyntheticBackend) GetType() BackendType {
	return BackendTypeSynthetic
}
