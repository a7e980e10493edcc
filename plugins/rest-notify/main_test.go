package main

import "testing"

func TestRestEnded_NothingToDo(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		opts Options
	}{
		{"all disabled", Request{Seconds: 60}, Options{}},
		{"rest shorter than minimum", Request{Seconds: 5}, Options{Notify: true, MinSeconds: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := restEnded(tt.req, tt.opts); err != nil {
				t.Errorf("restEnded() error = %v", err)
			}
		})
	}
}

func TestRestStarted_MuteDisabled(t *testing.T) {
	if err := restStarted(Request{}, Options{Mute: false}); err != nil {
		t.Errorf("restStarted() error = %v", err)
	}
}

func TestEventHandlers(t *testing.T) {
	for _, ev := range []string{"started", "ended"} {
		if _, ok := eventHandlers[ev]; !ok {
			t.Errorf("missing handler for %q", ev)
		}
	}
}
