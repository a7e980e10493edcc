package app

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/palmrest/internal/capture"
	"github.com/ayusman/palmrest/internal/config"
	"github.com/ayusman/palmrest/internal/detector"
	"github.com/ayusman/palmrest/internal/gesture"
	"github.com/ayusman/palmrest/internal/logging"
)

func TestApp_SessionStreamIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := config.Default()
	cfg.Camera.FPS = 60
	a := New(cfg, logging.Discard())

	det := detector.NewMockDetector()
	det.SetSequence([]detector.Landmarks{detector.FaceLandmarks(), detector.PalmingLandmarks()})
	a.SetDetector(det)

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	a.SetCameraFactory(func() capture.Camera { return cam })

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Post(ts.URL+"/start_session", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.True(t, a.Controller().Active())

	resp, err = client.Get(ts.URL + "/video_feed")
	require.NoError(t, err)
	defer resp.Body.Close()

	mr := multipart.NewReader(resp.Body, "frame")
	for i := 0; i < 3; i++ {
		part, err := mr.NextPart()
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "part %d should be a JPEG", i)
	}

	assert.Eventually(t, func() bool {
		return a.server.Hub().Last().Palming
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = client.Post(ts.URL+"/stop_session", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		return cam.Closes() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = client.Get(ts.URL + "/video_feed")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "Camera Off", string(body))
	assert.Equal(t, 1, cam.Opens())
}

func TestApp_RunShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	a := New(cfg, logging.Discard())
	a.SetDetector(detector.NewMockDetector())
	a.Controller().Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.Controller().Active(), "shutdown must stop the session")
}

func TestApp_TrayReceivesRestEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Tray = true
	a := New(cfg, logging.Discard())
	require.NotNil(t, a.Tray())

	p := a.newPipeline("s1").(*Pipeline)
	ctx := context.Background()
	p.Observe(ctx, detector.FaceLandmarks())
	p.Observe(ctx, detector.PalmingLandmarks())
	assert.Equal(t, "Resting...", a.Tray().LastRest())

	p.Observe(ctx, detector.RestingHandsLandmarks())
	assert.Equal(t, "Last rest: 0s", a.Tray().LastRest())
}

func TestApp_NoTrayByDefault(t *testing.T) {
	a := New(config.Default(), logging.Discard())
	assert.Nil(t, a.Tray())
	assert.Equal(t, gesture.Status{}, a.server.Hub().Last())
}

func TestApp_URL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":5000", "http://localhost:5000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"[::]:5000", "http://localhost:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cfg := config.Default()
			cfg.Addr = tt.addr
			a := New(cfg, logging.Discard())
			assert.Equal(t, tt.want, a.URL())
		})
	}
}

func TestApp_HandlerServesSessionRoutes(t *testing.T) {
	a := New(config.Default(), logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/start_session", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.Controller().Active())
}

func TestApp_PluginHooksReceiveRestEvents(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	hookDir := filepath.Join(dir, "recorder")
	require.NoError(t, os.MkdirAll(hookDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, "plugin.json"),
		[]byte(`{"name":"recorder","executable":"run.sh","events":["ended"]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, "run.sh"),
		[]byte("#!/bin/sh\ncat > out.json\necho '{\"success\":true}'\n"), 0755))

	cfg := config.Default()
	cfg.Plugins.Dir = dir
	a := New(cfg, logging.Discard())

	p := a.newPipeline("s1").(*Pipeline)
	ctx := context.Background()
	p.Observe(ctx, detector.FaceLandmarks())
	p.Observe(ctx, detector.PalmingLandmarks())
	p.Observe(ctx, detector.RestingHandsLandmarks())

	// Closing waits for running hooks.
	a.close()

	out, err := os.ReadFile(filepath.Join(hookDir, "out.json"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"event":"ended"`)
	assert.Contains(t, string(out), `"stream_id":"s1"`)
}
