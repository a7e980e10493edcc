package gesture

import "fmt"

// Status is the per-frame outcome shown to the user.
type Status struct {
	Palming bool   `json:"palming"`
	Seconds int    `json:"duration_s"`
	Warning string `json:"warning,omitempty"`
}

// Text returns the overlay message for the status.
func (s Status) Text() string {
	if s.Palming {
		return fmt.Sprintf("ACTIVE: %ds", s.Seconds)
	}
	if s.Warning != "" {
		return s.Warning
	}
	return "WAITING..."
}
