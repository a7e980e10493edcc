// Package main provides a rest hook plugin that quiets the desktop during a palming
// rest and posts a notification when it ends.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event    string          `json:"event"`
	StreamID string          `json:"stream_id"`
	Seconds  int             `json:"duration_s"`
	Config   json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Options are read from the manifest's config block.
type Options struct {
	Mute   bool `json:"mute"`
	Notify bool `json:"notify"`
	// MinSeconds suppresses the notification for shorter rests.
	MinSeconds int `json:"min_seconds"`
}

// eventHandler defines a function type for handling one rest event.
type eventHandler func(req Request, opts Options) error

// eventHandlers maps event names to their handler functions.
var eventHandlers = map[string]eventHandler{
	"started": restStarted,
	"ended":   restEnded,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	opts := Options{Mute: true, Notify: true}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &opts); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	handler, ok := eventHandlers[req.Event]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	if err := handler(req, opts); err != nil {
		writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
		return
	}

	writeSuccessResponse()
}

func restStarted(_ Request, opts Options) error {
	if !opts.Mute {
		return nil
	}
	return setMuted(true)
}

func restEnded(req Request, opts Options) error {
	if opts.Mute {
		if err := setMuted(false); err != nil {
			return err
		}
	}
	if !opts.Notify || req.Seconds < opts.MinSeconds {
		return nil
	}
	return notify("palmrest", fmt.Sprintf("Rested your eyes for %ds", req.Seconds))
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// run executes a command and folds its output into the error.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func setMuted(muted bool) error {
	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", fmt.Sprintf("set volume output muted %t", muted))
	case "linux":
		state := "0"
		if muted {
			state = "1"
		}
		return run("pactl", "set-sink-mute", "@DEFAULT_SINK@", state)
	default:
		return fmt.Errorf("mute not supported on %s", runtime.GOOS)
	}
}

func notify(title, message string) error {
	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", fmt.Sprintf("display notification %q with title %q", message, title))
	case "linux":
		return run("notify-send", title, message)
	default:
		return fmt.Errorf("notifications not supported on %s", runtime.GOOS)
	}
}
