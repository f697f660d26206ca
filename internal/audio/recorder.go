package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Recorder records fixed-duration clips from a backend
type Recorder struct {
	backend   Backend
	fs        afero.Fs
	chunkSize int
}

// NewRecorder creates a recorder writing through fs. A nil fs uses the OS filesystem.
func NewRecorder(backend Backend, fs afero.Fs, chunkSize int) *Recorder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Recorder{
		backend:   backend,
		fs:        fs,
		chunkSize: chunkSize,
	}
}

// Backend returns the backend sources are created from
func (r *Recorder) Backend() Backend {
	return r.backend
}

// Record captures up to maxDuration of audio into a WAV file at path and returns
// the path once the file is completely written. Cancelling ctx ends the recording
// early; what was captured so far is still saved. If the device cannot be opened
// the call fails with ErrDeviceUnavailable and no file is created.
func (r *Recorder) Record(ctx context.Context, path string, maxDuration time.Duration, onLevel LevelFunc) (string, error) {
	if maxDuration <= 0 {
		return "", fmt.Errorf("max duration must be positive, got %s", maxDuration)
	}
	if err := ensureDir(r.fs, filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}

	c := r.newCapture(path, onLevel)
	go c.run()

	select {
	case err := <-c.opened:
		if err != nil {
			<-c.done
			return "", err
		}
	case <-ctx.Done():
		// the worker may still be stuck in Open; it closes the source and
		// writes nothing once Open returns
		c.abandon()
		return "", fmt.Errorf("recording cancelled before the device opened: %w", ctx.Err())
	}
	slog.Info("Recording started", "output", path, "max_duration", maxDuration)

	go c.stopAfter(ctx, maxDuration)
	<-c.done

	if err := c.takeErr(); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Recorder) newCapture(path string, onLevel LevelFunc) *capture {
	return newCapture(r.backend.NewSource(), r.fs, path, r.chunkSize, onLevel)
}
