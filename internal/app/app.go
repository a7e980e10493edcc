// Package app wires the palmrest components together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/palmrest/internal/capture"
	"github.com/ayusman/palmrest/internal/config"
	"github.com/ayusman/palmrest/internal/detector"
	"github.com/ayusman/palmrest/internal/events"
	"github.com/ayusman/palmrest/internal/plugin"
	"github.com/ayusman/palmrest/internal/server"
	"github.com/ayusman/palmrest/internal/session"
	"github.com/ayusman/palmrest/internal/tray"
)

const shutdownTimeout = 5 * time.Second

// App is the main application that serves the camera feed and coaches rest periods.
type App struct {
	config     config.Config
	log        *logrus.Logger
	controller *session.Controller
	server     *server.Server
	tray       *tray.Tray
	mqtt       *events.MQTTPublisher
	events     events.Publisher

	mu       sync.RWMutex
	detector detector.Detector
	cameras  capture.Factory
}

// New creates a new App instance with the given configuration.
func New(cfg config.Config, log *logrus.Logger) *App {
	a := &App{
		config:     cfg,
		log:        log,
		controller: session.NewController(),
		cameras:    capture.DeviceFactory(cfg.Camera.DeviceID, cfg.Camera.FPS),
	}

	// Try MediaPipe first, fall back to mock detector
	if mp, err := detector.NewMediaPipeDetector(cfg.Detector.Options(), log); err == nil {
		a.detector = mp
		log.Info("using MediaPipe holistic detection")
	} else {
		log.WithError(err).Warn("MediaPipe not available, using mock detector")
		a.detector = detector.NewMockDetector()
	}

	var pubs events.Fanout
	if cfg.MQTT.Broker != "" {
		a.mqtt = events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			QoS:         cfg.MQTT.QoS,
		}, log)
		pubs = append(pubs, a.mqtt)
	}
	if cfg.Plugins.Dir != "" {
		mgr := plugin.NewManager(cfg.Plugins.Dir)
		if err := mgr.Discover(); err != nil {
			log.WithError(err).WithField("dir", cfg.Plugins.Dir).Warn("discover plugins")
		} else {
			log.WithField("count", len(mgr.List())).Info("rest hook plugins loaded")
		}
		pubs = append(pubs, plugin.NewDispatcher(mgr, plugin.NewExecutor(cfg.Plugins.TimeoutMs), log))
	}
	if cfg.Tray {
		a.tray = tray.New(a.controller)
		a.tray.OnOpen(a.openBrowser)
		pubs = append(pubs, a.tray)
	}
	a.events = pubs

	a.server = server.New(server.Config{
		Controller: a.controller,
		Cameras:    a.newCamera,
		Pipelines:  a.newPipeline,
		FPS:        cfg.Camera.FPS,
		Logger:     log,
	})

	a.controller.OnChange(func(active bool) {
		log.WithField("active", active).Debug("session changed")
	})

	return a
}

// SetDetector sets the landmark detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCameraFactory replaces how streams acquire a camera.
func (a *App) SetCameraFactory(f capture.Factory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cameras = f
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Controller returns the session switch.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// Handler returns the HTTP handler serving all routes.
func (a *App) Handler() http.Handler {
	return a.server
}

// Tray returns the system tray, or nil when it is disabled.
func (a *App) Tray() *tray.Tray {
	return a.tray
}

func (a *App) newCamera() capture.Camera {
	a.mu.RLock()
	f := a.cameras
	a.mu.RUnlock()
	return f()
}

func (a *App) newPipeline(streamID string) server.Processor {
	return NewPipeline(PipelineConfig{
		StreamID:    streamID,
		Detector:    a.Detector(),
		Thresholds:  a.config.Gesture.Thresholds(),
		JPEGQuality: a.config.Camera.JPEGQuality,
		Events:      a.events,
		Logger:      a.log,
	})
}

// Run serves HTTP until ctx is cancelled, then stops the session and shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			a.log.WithError(err).Warn("mqtt broker unavailable, retrying in background")
		}
	}

	srv := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.config.Addr).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
		// Streams exit on their next frame once the session is stopped.
		a.controller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			err = fmt.Errorf("shutdown: %w", serr)
		}
	}

	a.close()
	return err
}

func (a *App) close() {
	if err := a.Detector().Close(); err != nil {
		a.log.WithError(err).Warn("close detector")
	}
	if err := a.events.Close(); err != nil {
		a.log.WithError(err).Warn("close event publishers")
	}
}

// URL returns the local address of the landing page.
func (a *App) URL() string {
	host, port, err := net.SplitHostPort(a.config.Addr)
	if err != nil {
		return "http://" + a.config.Addr
	}
	if host == "" || host == "0.0.0.0" || strings.Contains(host, ":") {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (a *App) openBrowser() {
	url := a.URL()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		a.log.WithError(err).WithField("url", url).Warn("open browser")
	}
}
