package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// DefaultChunkSize is the number of bytes requested from the source per read
const DefaultChunkSize = 4096

// capture is one run of the capture worker: open, read until stopped, close, encode.
// The worker goroutine owns src and the PCM buffer; the stop flag and the error
// slot are the only state shared with other goroutines.
type capture struct {
	src       Source
	fs        afero.Fs
	format    Format
	path      string
	chunkSize int
	onLevel   LevelFunc

	stopping  atomic.Bool
	abandoned atomic.Bool
	opened   chan error
	done     chan struct{}

	mu        sync.Mutex
	err       error
	captured  int
	lastLevel float64
}

func newCapture(src Source, fs afero.Fs, path string, chunkSize int, onLevel LevelFunc) *capture {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &capture{
		src:       src,
		fs:        fs,
		format:    PCM16Mono,
		path:      path,
		chunkSize: chunkSize,
		onLevel:   onLevel,
		opened:    make(chan error, 1),
		done:      make(chan struct{}),
	}
}

func (c *capture) run() {
	defer close(c.done)

	if err := c.src.Open(); err != nil {
		c.setErr(err)
		c.opened <- err
		return
	}
	c.opened <- nil

	started := time.Now()
	var buffer bytes.Buffer
	data := make([]byte, c.chunkSize)

	for !c.stopping.Load() {
		n, err := c.src.Read(data)
		if n > 0 {
			buffer.Write(data[:n])
			level := ComputeLevel(data, n)
			c.progress(n, level)
			notifyLevel(c.onLevel, level)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			c.src.Close()
			c.setErr(fmt.Errorf("read from audio device: %w", err))
			slog.Error("Capture aborted", "output", c.path, "error", err)
			return
		}
		if n <= 0 {
			break
		}
	}

	c.src.Close()
	if c.abandoned.Load() {
		slog.Debug("Capture abandoned", "output", c.path)
		return
	}
	slog.Debug("Capture finished", "output", c.path, "bytes", buffer.Len(), "elapsed", time.Since(started))

	if err := WriteWAV(c.fs, c.path, buffer.Bytes(), c.format); err != nil {
		c.setErr(err)
		return
	}
	slog.Info("Recording saved", "output", c.path, "duration", c.format.Duration(buffer.Len()))
}

// requestStop flips the stop flag; the worker notices before its next read
func (c *capture) requestStop() {
	c.stopping.Store(true)
}

// abandon stops the capture and discards whatever it captured
func (c *capture) abandon() {
	c.abandoned.Store(true)
	c.requestStop()
}

// stopAfter stops the capture once d has elapsed or ctx is done, and closes the
// source in case the worker is parked in Read.
func (c *capture) stopAfter(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		slog.Debug("Maximum recording duration reached", "duration", d)
	case <-ctx.Done():
		slog.Debug("Recording cancelled", "reason", ctx.Err())
	case <-c.done:
		return
	}

	c.requestStop()
	c.src.Close()
}

func (c *capture) progress(n int, level float64) {
	c.mu.Lock()
	c.captured += n
	c.lastLevel = level
	c.mu.Unlock()
}

func (c *capture) stats() (captured int, level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captured, c.lastLevel
}

func (c *capture) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// takeErr drains the error slot
func (c *capture) takeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	return err
}

func (c *capture) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
