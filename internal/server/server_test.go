package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/echonote/internal/audio"
	"github.com/audiolibrelab/echonote/internal/config"
	"github.com/audiolibrelab/echonote/internal/service"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, afero.Fs) {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.Backend = "synthetic"
	cfg.Output.RecordingsDirectory = "/data/recordings"

	fs := afero.NewMemMapFs()
	s := New(service.New(cfg, fs), "0")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, fs
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRecordStartStop(t *testing.T) {
	_, ts, fs := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/record/start", url.Values{"prefix": {"t-"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	status := decode(t, resp)
	assert.Equal(t, "RECORDING", status["status"])
	assert.Equal(t, "synthetic", status["backend"])

	// A second start conflicts
	resp, err = http.PostForm(ts.URL+"/record/start", url.Values{"prefix": {"t-"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/record/stop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)

	path, _ := body["path"].(string)
	assert.True(t, strings.HasPrefix(path, "/data/recordings/t-"))
	exists, _ := afero.Exists(fs, path)
	assert.True(t, exists)

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	assert.Equal(t, "IDLE", decode(t, resp)["status"])
}

func TestRecordStop_NotRecording(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/record/stop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/record/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/status", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRecordingsListAndStream(t *testing.T) {
	_, ts, fs := newTestServer(t)
	require.NoError(t, audio.WriteWAV(fs, "/data/recordings/memo.wav", make([]byte, 8820), audio.PCM16Mono))

	resp, err := http.Get(ts.URL + "/api/recordings")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list RecordingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.TotalCount)
	assert.Equal(t, "memo.wav", list.Recordings[0].Name)
	assert.Equal(t, 100*time.Millisecond, list.Recordings[0].Duration)

	resp, err = http.Get(ts.URL + list.Recordings[0].StreamURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, data, audio.WAVHeaderSize+8820)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+list.Recordings[0].StreamURL, nil)
	req.Header.Set("Range", "bytes=0-3")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	data, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "RIFF", string(data))
}

func TestRecordingStream_Errors(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		path     string
		expected int
	}{
		{"/api/recordings/stream/", http.StatusBadRequest},
		{"/api/recordings/stream/missing.wav", http.StatusNotFound},
		{"/api/recordings/stream/notes.txt", http.StatusBadRequest},
		{"/api/recordings/stream/.hidden.wav", http.StatusBadRequest},
	}

	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.expected, resp.StatusCode, tt.path)
	}
}

func TestLevelStream(t *testing.T) {
	s, ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/levels"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.levels.Subscribers() == 1 }, 5*time.Second, time.Millisecond)

	s.levels.Publish(0.25)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg LevelMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 0.25, msg.Level)

	conn.Close()
	require.Eventually(t, func() bool { return s.levels.Subscribers() == 0 }, 5*time.Second, time.Millisecond)
}

func TestLevelHub_PublishNeverBlocks(t *testing.T) {
	hub := NewLevelHub()
	ch := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish(float64(i) / 1000)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, cap(ch))

	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch)
	_, open := <-ch
	for open {
		_, open = <-ch
	}
	assert.Equal(t, 0, hub.Subscribers())
}

func TestStatusCodeFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusCodeFor(audio.ErrAlreadyRecording))
	assert.Equal(t, http.StatusConflict, statusCodeFor(fmt.Errorf("wrapped: %w", audio.ErrNotRecording)))
	assert.Equal(t, http.StatusServiceUnavailable, statusCodeFor(audio.ErrDeviceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusCodeFor(audio.ErrEncodingFailure))
	assert.Equal(t, http.StatusInternalServerError, statusCodeFor(errors.New("boom")))
}
