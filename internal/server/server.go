// Package server provides the HTTP surface of palmrest: the landing page,
// the annotated MJPEG feed and the session switch.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/palmrest/internal/capture"
	"github.com/ayusman/palmrest/internal/gesture"
	"github.com/ayusman/palmrest/internal/logging"
	"github.com/ayusman/palmrest/internal/session"
)

//go:embed web/index.html
var webFS embed.FS

var indexTmpl = template.Must(template.ParseFS(webFS, "web/index.html"))

// Processor turns one camera frame into an encoded JPEG plus the status drawn on it.
// Each stream gets its own Processor.
type Processor interface {
	Process(ctx context.Context, frame *gocv.Mat) ([]byte, gesture.Status, error)
	// Finish is called once when the stream ends.
	Finish(ctx context.Context)
}

// Config holds the server configuration.
type Config struct {
	Controller *session.Controller
	Cameras    capture.Factory
	Pipelines  func(streamID string) Processor
	Hub        *Hub
	FPS        int
	Logger     logrus.FieldLogger
}

// Server represents the HTTP server for palmrest.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logrus.FieldLogger
}

type sessionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Controller == nil {
		config.Controller = session.NewController()
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.Hub == nil {
		config.Hub = NewHub(config.Logger)
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger.WithField("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.Handle("/video_feed", NewStreamHandler(s.config))
	s.mux.HandleFunc("/start_session", s.handleStart)
	s.mux.HandleFunc("/stop_session", s.handleStop)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/status", s.config.Hub)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the status hub fed by the video stream.
func (s *Server) Hub() *Hub {
	return s.config.Hub
}

// handleIndex renders the landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Active bool }{Active: s.config.Controller.Active()}
	if err := indexTmpl.Execute(w, data); err != nil {
		s.log.WithError(err).Error("render index")
	}
}

// handleStart handles POST /start_session.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.config.Controller.Start() {
		s.log.Info("session started")
	}
	writeJSON(w, http.StatusOK, sessionResponse{Status: "started", Message: "Camera started"})
}

// handleStop handles POST /stop_session. Open streams end on their next frame.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.config.Controller.Stop() {
		s.log.Info("session stopped")
	}
	writeJSON(w, http.StatusOK, sessionResponse{Status: "stopped", Message: "Session saved"})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"active":  s.config.Controller.Active(),
		"clients": s.config.Hub.Clients(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
