package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(src *fakeSource) (*Session, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewSession(NewRecorder(backendFor(src), fs, 64)), fs
}

func TestSession_StartThenStop(t *testing.T) {
	s, fs := newTestSession(newFakeSource())

	require.NoError(t, s.Start("/recordings/t-1.wav", nil))
	path, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/recordings/t-1.wav", path)

	info, err := InspectWAV(fs, path)
	require.NoError(t, err)
	assert.Equal(t, 0, info.DataSize%PCM16Mono.FrameSize)

	state, _ := s.Status()
	assert.Equal(t, StateIdle, state)
}

func TestSession_CapturesUntilStopped(t *testing.T) {
	src := newFakeSource()
	src.sample = 8192
	s, fs := newTestSession(src)

	var calls atomic.Int32
	require.NoError(t, s.Start("/recordings/t-2.wav", func(level float64) {
		calls.Add(1)
	}))

	require.Eventually(t, func() bool { return calls.Load() >= 5 }, 5*time.Second, time.Millisecond)

	state, info := s.Status()
	assert.Equal(t, StateRecording, state)
	require.NotNil(t, info)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "/recordings/t-2.wav", info.OutputFile)
	assert.Greater(t, info.BytesCaptured, 0)
	assert.InDelta(t, 0.25, info.Level, 1e-9)

	path, err := s.Stop(context.Background())
	require.NoError(t, err)

	wav, err := InspectWAV(fs, path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, wav.DataSize, 5*64)
	assert.InDelta(t, 0.25, wav.PeakLevel, 1e-9)
}

func TestSession_AlreadyRecording(t *testing.T) {
	s, _ := newTestSession(newFakeSource())

	require.NoError(t, s.Start("/recordings/a.wav", nil))
	err := s.Start("/recordings/b.wav", nil)
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	_, err = s.Stop(context.Background())
	require.NoError(t, err)
}

func TestSession_NotRecording(t *testing.T) {
	s, _ := newTestSession(newFakeSource())

	_, err := s.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestSession_ReadErrorSurfacedOnce(t *testing.T) {
	src := newFakeSource()
	src.readErr = errors.New("buffer overrun")
	src.failAfter = 2
	s, fs := newTestSession(src)

	require.NoError(t, s.Start("/recordings/err.wav", nil))

	// Let the worker hit the error before stopping
	require.Eventually(t, func() bool {
		_, info := s.Status()
		return info != nil && info.Finished
	}, 5*time.Second, time.Millisecond)

	_, err := s.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer overrun")

	exists, _ := afero.Exists(fs, "/recordings/err.wav")
	assert.False(t, exists)

	// The error went to the first Stop only
	_, err = s.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)

	state, _ := s.Status()
	assert.Equal(t, StateIdle, state)
}

func TestSession_OpenFailureReportedAtStop(t *testing.T) {
	src := newFakeSource()
	src.openErr = errors.Join(ErrDeviceUnavailable, errors.New("busy"))
	s, _ := newTestSession(src)

	require.NoError(t, s.Start("/recordings/open.wav", nil))
	_, err := s.Stop(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	// A new session can start afterwards
	src.openErr = nil
	require.NoError(t, s.Start("/recordings/open2.wav", nil))
	_, err = s.Stop(context.Background())
	require.NoError(t, err)
}

func TestSession_InterruptedWait(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.entered = make(chan struct{}, 1)
	s, fs := newTestSession(src)

	require.NoError(t, s.Start("/recordings/slow.wav", nil))

	// Stop only once the worker is parked in Read
	select {
	case <-src.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("capture worker never reached Read")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Stop(ctx)
	assert.ErrorIs(t, err, ErrInterruptedWait)

	state, _ := s.Status()
	assert.Equal(t, StateStopping, state)

	err = s.Start("/recordings/other.wav", nil)
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	// Release the blocked read; a second Stop picks up the result
	close(src.gate)
	path, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/recordings/slow.wav", path)

	exists, _ := afero.Exists(fs, path)
	assert.True(t, exists)
}

func TestSession_PanickingCallback(t *testing.T) {
	s, fs := newTestSession(newFakeSource())

	var calls atomic.Int32
	require.NoError(t, s.Start("/recordings/panic.wav", func(float64) {
		calls.Add(1)
		panic("listener crashed")
	}))

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, time.Millisecond)

	path, err := s.Stop(context.Background())
	require.NoError(t, err)

	exists, _ := afero.Exists(fs, path)
	assert.True(t, exists)
}

func TestSession_StartFailsOnReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	s := NewSession(NewRecorder(backendFor(newFakeSource()), fs, 64))

	err := s.Start("/recordings/ro.wav", nil)
	assert.ErrorIs(t, err, ErrEncodingFailure)

	state, _ := s.Status()
	assert.Equal(t, StateIdle, state)
}
