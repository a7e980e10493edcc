package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/palmrest/internal/capture"
	"github.com/ayusman/palmrest/internal/session"
)

// StreamHandler serves annotated MJPEG frames while the session is active.
type StreamHandler struct {
	controller *session.Controller
	cameras    capture.Factory
	pipelines  func(streamID string) Processor
	hub        *Hub
	fps        int
	log        logrus.FieldLogger
}

// NewStreamHandler creates a StreamHandler from the server configuration.
func NewStreamHandler(config Config) *StreamHandler {
	return &StreamHandler{
		controller: config.Controller,
		cameras:    config.Cameras,
		pipelines:  config.Pipelines,
		hub:        config.Hub,
		fps:        config.FPS,
		log:        config.Logger.WithField("component", "stream"),
	}
}

// ServeHTTP streams frames until the session stops or the client goes away.
// Every stream opens its own camera handle and releases it on return.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.controller.Active() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "Camera Off")
		return
	}

	if h.cameras == nil || h.pipelines == nil {
		writeError(w, http.StatusServiceUnavailable, "Camera not configured")
		return
	}

	streamID := uuid.NewString()
	log := h.log.WithField("stream_id", streamID)

	cam := h.cameras()
	if err := cam.Open(); err != nil {
		log.WithError(err).Error("open camera")
		writeError(w, http.StatusServiceUnavailable, "Camera unavailable")
		return
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.WithError(err).Warn("close camera")
		}
	}()

	proc := h.pipelines(streamID)
	defer proc.Finish(context.Background())

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	log.Info("stream opened")

	ctx := r.Context()
	limiter := rate.NewLimiter(rate.Limit(h.fps), 1)
	sent := 0

	for h.controller.Active() {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrFrameUnavailable) {
				log.WithError(err).Debug("skipping frame")
				continue
			}
			log.WithError(err).Error("read frame")
			break
		}

		data, status, err := proc.Process(ctx, frame)
		frame.Close()
		if err != nil {
			log.WithError(err).Warn("skipping frame")
			continue
		}

		if err := writePart(w, data); err != nil {
			log.WithError(err).Debug("client went away")
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
		sent++

		h.hub.Publish(status)
	}

	log.WithField("frames", sent).Info("stream closed")
}

// writePart writes one multipart JPEG part.
func writePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
