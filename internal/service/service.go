package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/audiolibrelab/echonote/internal/audio"
	"github.com/audiolibrelab/echonote/internal/config"
	"github.com/audiolibrelab/echonote/internal/play"
)

// Service is the recording façade used by the CLI and the HTTP server
type Service interface {
	// Timed recording operations
	RecordToFile(ctx context.Context, path string, maxDuration time.Duration, onLevel audio.LevelFunc) (string, error)
	RecordToTempFile(ctx context.Context, prefix string, maxDuration time.Duration, onLevel audio.LevelFunc) (string, error)

	// Interactive recording operations
	StartInteractiveRecording(prefix string, onLevel audio.LevelFunc) error
	StopInteractiveRecording(ctx context.Context) (string, error)
	GetRecordingStatus() (audio.State, *audio.SessionInfo)

	// Recordings
	ListRecordings() ([]RecordingInfo, error)
	OpenRecording(name string) (afero.File, os.FileInfo, error)
	Inspect(path string) (*audio.WAVInfo, error)
	Play(ctx context.Context, path string) error

	// Configuration and information operations
	GetConfig() *config.Config
	GetBackend() audio.Backend
	GetLastError() string
}

// RecordingInfo describes a WAV file in the recordings directory
type RecordingInfo struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Size         int64         `json:"size"`
	SizeHuman    string        `json:"size_human"`
	ModTime      time.Time     `json:"mod_time"`
	ModTimeHuman string        `json:"mod_time_human"`
	Duration     time.Duration `json:"duration"`
	StreamURL    string        `json:"stream_url"`
}

var _ Service = (*EchoNoteService)(nil)

// EchoNoteService is the main service implementation
type EchoNoteService struct {
	cfg      *config.Config
	fs       afero.Fs
	recorder *audio.Recorder
	session  *audio.Session
	player   *play.Player
	now      func() time.Time

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service recording from the configured backend. A nil fs uses the OS filesystem.
func New(cfg *config.Config, fs afero.Fs) *EchoNoteService {
	return NewWithBackend(cfg, fs, audio.NewBackend(cfg.Audio))
}

// NewWithBackend creates a service recording from backend
func NewWithBackend(cfg *config.Config, fs afero.Fs, backend audio.Backend) *EchoNoteService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	recorder := audio.NewRecorder(backend, fs, cfg.Audio.ChunkSize)

	return &EchoNoteService{
		cfg:      cfg,
		fs:       fs,
		recorder: recorder,
		session:  audio.NewSession(recorder),
		player:   play.New(fs),
		now:      time.Now,
	}
}

// RecordToFile records up to maxDuration into path and returns once the WAV file is
// written. A zero maxDuration uses record.max_duration.
func (s *EchoNoteService) RecordToFile(ctx context.Context, path string, maxDuration time.Duration, onLevel audio.LevelFunc) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output path is required")
	}
	if maxDuration == 0 {
		maxDuration = s.cfg.Record.MaxDuration
	}

	slog.Debug("Service.RecordToFile called", "path", path, "max_duration", maxDuration)
	s.clearLastError()

	out, err := s.recorder.Record(ctx, path, maxDuration, onLevel)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to record: %v", err))
		return "", err
	}
	return out, nil
}

// RecordToTempFile records into a uniquely named .wav file in the temp directory
func (s *EchoNoteService) RecordToTempFile(ctx context.Context, prefix string, maxDuration time.Duration, onLevel audio.LevelFunc) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = s.cfg.Output.FilePrefix
	}

	dir := s.cfg.Output.TempDirectory
	if dir == "" {
		dir = os.TempDir()
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	f, err := afero.TempFile(s.fs, dir, prefix+"*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	f.Close()

	out, err := s.RecordToFile(ctx, path, maxDuration, onLevel)
	if err != nil {
		// the placeholder must not outlive a failed recording
		s.fs.Remove(path)
		return "", err
	}
	return out, nil
}

// StartInteractiveRecording starts an open-ended recording into
// <recordings_directory>/<prefix><unix millis>.wav and returns immediately
func (s *EchoNoteService) StartInteractiveRecording(prefix string, onLevel audio.LevelFunc) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}
	if prefix == "" {
		prefix = s.cfg.Output.FilePrefix
	}

	path := filepath.Join(s.cfg.Output.RecordingsDirectory, fmt.Sprintf("%s%d.wav", prefix, s.now().UnixMilli()))

	slog.Debug("Service.StartInteractiveRecording called", "path", path)
	s.clearLastError()

	if err := s.session.Start(path, onLevel); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

// StopInteractiveRecording ends the interactive recording and returns the WAV path
// once it is fully written
func (s *EchoNoteService) StopInteractiveRecording(ctx context.Context) (string, error) {
	path, err := s.session.Stop(ctx)
	if errors.Is(err, audio.ErrNotRecording) {
		// a concurrent Stop may already own the outcome
		slog.Debug("Stop requested without an active recording")
		return "", err
	}
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return "", err
	}
	s.clearLastError()
	return path, nil
}

// GetRecordingStatus returns the interactive session state and info
func (s *EchoNoteService) GetRecordingStatus() (audio.State, *audio.SessionInfo) {
	return s.session.Status()
}

// ListRecordings returns the WAV files in the recordings directory, newest first
func (s *EchoNoteService) ListRecordings() ([]RecordingInfo, error) {
	dir := s.cfg.Output.RecordingsDirectory

	// Create directory if it doesn't exist
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	files, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	recordings := []RecordingInfo{}
	for _, file := range files {
		if file.IsDir() || strings.ToLower(filepath.Ext(file.Name())) != ".wav" {
			continue
		}

		path := filepath.Join(dir, file.Name())
		rec := RecordingInfo{
			Name:         file.Name(),
			Path:         path,
			Size:         file.Size(),
			SizeHuman:    formatBytes(file.Size()),
			ModTime:      file.ModTime(),
			ModTimeHuman: file.ModTime().Format("2006-01-02 15:04:05"),
			StreamURL:    fmt.Sprintf("/api/recordings/stream/%s", file.Name()),
		}

		// Unreadable files are still listed
		if info, err := audio.ReadWAVInfo(s.fs, path); err == nil {
			rec.Duration = info.Duration
		} else {
			slog.Debug("Skipping WAV inspection", "file", file.Name(), "error", err)
		}

		recordings = append(recordings, rec)
	}

	// Sort by modification time (newest first)
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// OpenRecording opens a recording by file name. Names that would leave the
// recordings directory are rejected.
func (s *EchoNoteService) OpenRecording(name string) (afero.File, os.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, nil, fmt.Errorf("invalid recording name: %q", name)
	}
	if strings.ToLower(filepath.Ext(name)) != ".wav" {
		return nil, nil, fmt.Errorf("not a WAV recording: %q", name)
	}

	f, err := s.fs.Open(filepath.Join(s.cfg.Output.RecordingsDirectory, name))
	if err != nil {
		return nil, nil, fmt.Errorf("recording not found: %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat recording %s: %w", name, err)
	}
	return f, info, nil
}

// Inspect decodes the WAV header and PCM data of path
func (s *EchoNoteService) Inspect(path string) (*audio.WAVInfo, error) {
	return audio.InspectWAV(s.fs, path)
}

// Play plays a WAV file with an external player
func (s *EchoNoteService) Play(ctx context.Context, path string) error {
	if err := s.player.Play(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.setLastError(fmt.Sprintf("Playback failed: %v", err))
		}
		return err
	}
	return nil
}

// GetConfig returns the current configuration
func (s *EchoNoteService) GetConfig() *config.Config {
	return s.cfg
}

// GetBackend returns the audio backend recordings are captured from
func (s *EchoNoteService) GetBackend() audio.Backend {
	return s.recorder.Backend()
}

// GetLastError returns the last error message (thread-safe)
func (s *EchoNoteService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *EchoNoteService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *EchoNoteService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

func validatePrefix(prefix string) error {
	if strings.ContainsAny(prefix, `/\`) || strings.Contains(prefix, "..") {
		return fmt.Errorf("invalid file prefix: %q", prefix)
	}
	return nil
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
