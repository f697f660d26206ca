package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/echonote/internal/audio"
	"github.com/audiolibrelab/echonote/internal/service"
)

// Server represents the web server for controlling EchoNote
type Server struct {
	service service.Service
	port    string
	levels  *LevelHub
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status              string             `json:"status"`
	Message             string             `json:"message,omitempty"`
	Session             *audio.SessionInfo `json:"session,omitempty"`
	Backend             string             `json:"backend"`
	RecordingsDirectory string             `json:"recordings_directory"`
	LastError           string             `json:"last_error,omitempty"`
}

// RecordingsResponse represents the JSON response for recordings endpoint
type RecordingsResponse struct {
	Recordings          []service.RecordingInfo `json:"recordings"`
	TotalCount          int                     `json:"total_count"`
	RecordingsDirectory string                  `json:"recordings_directory"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool {
		return true // Allow all origins
	},
}

// New creates a new web server instance
func New(svc service.Service, port string) *Server {
	return &Server{
		service: svc,
		port:    port,
		levels:  NewLevelHub(),
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/recordings", s.handleRecordings)
	mux.HandleFunc("/api/recordings/stream/", s.handleRecordingStream)
	mux.HandleFunc("/api/levels", s.handleLevels)
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()

	localIP := getLocalIP()

	slog.Info("Starting EchoNote Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleStartRecording starts an interactive recording
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	prefix := r.FormValue("prefix")

	if err := s.service.StartInteractiveRecording(prefix, s.levels.Publish); err != nil {
		s.sendErrorResponse(w, statusCodeFor(err),
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "start_recording", "prefix", prefix)
		return
	}

	_, session := s.service.GetRecordingStatus()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Recording started",
		"session": session,
	})
}

// handleStopRecording stops the interactive recording and waits for the WAV file
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path, err := s.service.StopInteractiveRecording(r.Context())
	if err != nil {
		s.sendErrorResponse(w, statusCodeFor(err),
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "stop_recording")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Recording stopped",
		"path":    path,
	})
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, session := s.service.GetRecordingStatus()

	response := StatusResponse{
		Status:              string(state),
		Message:             generateStatusMessage(state, session),
		Session:             session,
		Backend:             string(s.service.GetBackend().GetType()),
		RecordingsDirectory: s.service.GetConfig().Output.RecordingsDirectory,
		LastError:           s.service.GetLastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRecordings lists the recordings directory
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err),
			"operation", "list_recordings")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RecordingsResponse{
		Recordings:          recordings,
		TotalCount:          len(recordings),
		RecordingsDirectory: s.service.GetConfig().Output.RecordingsDirectory,
	})
}

// handleRecordingStream serves a recording with range support
func (s *Server) handleRecordingStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/recordings/stream/")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	file, info, err := s.service.OpenRecording(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// handleLevels streams level samples of the interactive recording over a websocket
func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade level stream to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	ch := s.levels.Subscribe()
	defer s.levels.Unsubscribe(ch)

	// The client sends nothing; reading detects when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("Level stream closed unexpectedly", "error", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("Level stream write error", "error", err)
				return
			}
		}
	}
}

func generateStatusMessage(state audio.State, session *audio.SessionInfo) string {
	switch state {
	case audio.StateRecording:
		if session != nil {
			return fmt.Sprintf("Recording in progress - %s", session.OutputFile)
		}
		return "Recording in progress"
	case audio.StateStopping:
		return "Finishing recording"
	default:
		return ""
	}
}

// statusCodeFor maps recording errors to HTTP status codes
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrAlreadyRecording), errors.Is(err, audio.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
