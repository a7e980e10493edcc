// Package plugin runs external rest hooks: executables that react to the start
// and end of palming rest periods.
package plugin

import (
	"encoding/json"
	"time"

	"github.com/ayusman/palmrest/internal/events"
)

// Manifest describes a plugin's metadata and the events it subscribes to.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Event     string          `json:"event"`
	StreamID  string          `json:"stream_id"`
	Seconds   int             `json:"duration_s"`
	Timestamp time.Time       `json:"timestamp"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the plugin subscribed to kind. An empty list means all events.
func (p *Plugin) Handles(kind events.Kind) bool {
	if len(p.Manifest.Events) == 0 {
		return true
	}
	for _, e := range p.Manifest.Events {
		if e == string(kind) {
			return true
		}
	}
	return false
}

// NewRequest builds the request for ev.
func NewRequest(p *Plugin, ev events.Event) *Request {
	return &Request{
		Event:     string(ev.Kind),
		StreamID:  ev.StreamID,
		Seconds:   ev.Seconds,
		Timestamp: ev.Timestamp,
		Config:    p.Manifest.Config,
	}
}
