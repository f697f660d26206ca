package audio

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// fakeSource produces a constant sample pattern, optionally failing to open
// or failing after a number of reads. When gate is set, each Read waits for it
// and first signals entered, if set, without blocking. When openGate is set,
// Open waits for it.
type fakeSource struct {
	openErr   error
	openGate  chan struct{}
	readErr   error
	failAfter int
	sample    int16
	gate      chan struct{}
	entered   chan struct{}

	reads     int
	closeOnce sync.Once
	closed    chan struct{}
	closes    atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{closed: make(chan struct{})}
}

func (s *fakeSource) Open() error {
	if s.openGate != nil {
		<-s.openGate
	}
	return s.openErr
}

func (s *fakeSource) Read(p []byte) (int, error) {
	if s.readErr != nil && s.reads >= s.failAfter {
		return 0, s.readErr
	}

	wait := s.gate
	if wait == nil {
		timer := time.NewTimer(time.Millisecond)
		defer timer.Stop()
		select {
		case <-s.closed:
			return 0, io.EOF
		case <-timer.C:
		}
	} else {
		if s.entered != nil {
			select {
			case s.entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-s.closed:
			return 0, io.EOF
		case <-wait:
		}
	}

	s.reads++
	n := len(p) - len(p)%2
	for i := 0; i < n; i += 2 {
		p[i] = byte(uint16(s.sample))
		p[i+1] = byte(uint16(s.sample) >> 8)
	}
	return n, nil
}

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fakeBackend hands out sources built by newSource
type fakeBackend struct {
	newSource func() Source
}

func (b *fakeBackend) NewSource() Source {
	return b.newSource()
}

func (b *fakeBackend) Probe() error {
	return nil
}

func (b *fakeBackend) GetType() BackendType {
	return "fake"
}

func backendFor(src *fakeSource) *fakeBackend {
	return &fakeBackend{newSource: func() Source { return src }}
}
