package server

import (
	"sync"
	"time"
)

// LevelMessage is one level sample sent to websocket clients
type LevelMessage struct {
	Level float64   `json:"level"`
	Time  time.Time `json:"time"`
}

// LevelHub fans level samples out to subscribers. Publish never blocks; a
// subscriber that falls behind misses samples.
type LevelHub struct {
	mu          sync.Mutex
	subscribers map[chan LevelMessage]struct{}
}

func NewLevelHub() *LevelHub {
	return &LevelHub{subscribers: make(map[chan LevelMessage]struct{})}
}

func (h *LevelHub) Subscribe() chan LevelMessage {
	ch := make(chan LevelMessage, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *LevelHub) Unsubscribe(ch chan LevelMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Publish is an audio.LevelFunc; it runs on the capture goroutine
func (h *LevelHub) Publish(level float64) {
	msg := LevelMessage{Level: level, Time: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers returns the number of connected listeners
func (h *LevelHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
