package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State represents the current state of an interactive session
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateStopping  State = "STOPPING"
)

// SessionInfo contains information about the current recording session
type SessionInfo struct {
	ID            string        `json:"id"`
	OutputFile    string        `json:"output_file"`
	StartTime     time.Time     `json:"start_time"`
	BytesCaptured int           `json:"bytes_captured"`
	Duration      time.Duration `json:"duration"`
	Level         float64       `json:"level"`
	Finished      bool          `json:"finished"`
}

// Session runs open-ended recordings that end only when Stop is called.
// At most one recording is active per Session.
type Session struct {
	recorder *Recorder

	mutex   sync.Mutex
	state   State
	current *capture
	info    *SessionInfo
}

// NewSession creates an idle session recording through rec
func NewSession(rec *Recorder) *Session {
	return &Session{
		recorder: rec,
		state:    StateIdle,
	}
}

// Start begins recording to path and returns without waiting for the device.
// A failure to open the device is reported by the following Stop.
func (s *Session) Start(path string, onLevel LevelFunc) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: current state %s", ErrAlreadyRecording, s.state)
	}

	if err := ensureDir(s.recorder.fs, filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}

	c := s.recorder.newCapture(path, onLevel)
	s.current = c
	s.state = StateRecording
	s.info = &SessionInfo{
		ID:         uuid.NewString(),
		OutputFile: path,
		StartTime:  time.Now(),
	}

	go c.run()

	slog.Info("Interactive recording started", "id", s.info.ID, "output", path)
	return nil
}

// Stop signals the capture worker, waits for it to finish writing the file and
// returns the output path, or the error the worker recorded. Only one Stop call
// receives the outcome of a recording. If ctx ends first, Stop returns
// ErrInterruptedWait and a later Stop resumes waiting.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mutex.Lock()
	if s.current == nil || s.state == StateIdle {
		s.mutex.Unlock()
		return "", ErrNotRecording
	}
	c := s.current
	s.state = StateStopping
	s.mutex.Unlock()

	c.requestStop()

	select {
	case <-c.done:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrInterruptedWait, ctx.Err())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.current != c {
		return "", ErrNotRecording
	}
	s.current = nil
	s.info = nil
	s.state = StateIdle

	if err := c.takeErr(); err != nil {
		slog.Error("Interactive recording failed", "output", c.path, "error", err)
		return "", fmt.Errorf("error during recording: %w", err)
	}
	return c.path, nil
}

// Status returns the current state and a copy of the session info
func (s *Session) Status() (State, *SessionInfo) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.info == nil || s.current == nil {
		return s.state, nil
	}

	captured, level := s.current.stats()
	info := *s.info
	info.BytesCaptured = captured
	info.Duration = PCM16Mono.Duration(captured)
	info.Level = level
	info.Finished = s.current.finished()
	return s.state, &info
}
