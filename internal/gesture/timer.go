package gesture

import "time"

// Clock abstracts the current time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Transition describes what a Timer update changed.
type Transition int

const (
	// NoChange means the timer stayed in its state.
	NoChange Transition = iota
	// Started means the timer moved from idle to active.
	Started
	// Ended means the timer moved from active to idle.
	Ended
)

func (t Transition) String() string {
	switch t {
	case Started:
		return "started"
	case Ended:
		return "ended"
	default:
		return "none"
	}
}

// Tick is the result of one Timer update.
type Tick struct {
	// Seconds is the whole seconds spent palming, or the final value when Transition is Ended.
	Seconds    int
	Transition Transition
}

// Timer measures how long palming has been held.
//
// States:
//
//	IDLE   -> ACTIVE  palming reported and no start recorded; records now
//	ACTIVE -> ACTIVE  palming still reported; Seconds = floor(now - start)
//	ACTIVE -> IDLE    palming cleared; start dropped
type Timer struct {
	clock   Clock
	start   time.Time
	active  bool
	seconds int
}

// NewTimer creates a Timer. A nil clock uses the wall clock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{clock: clock}
}

// Update advances the timer with the classifier's palming state.
func (t *Timer) Update(palming bool) Tick {
	if !palming {
		if !t.active {
			return Tick{}
		}
		final := t.seconds
		t.active = false
		t.start = time.Time{}
		t.seconds = 0
		return Tick{Seconds: final, Transition: Ended}
	}

	now := t.clock.Now()
	tr := NoChange
	if !t.active {
		t.active = true
		t.start = now
		tr = Started
	}
	t.seconds = int(now.Sub(t.start) / time.Second)
	return Tick{Seconds: t.seconds, Transition: tr}
}

// Active reports whether a palming period is being timed.
func (t *Timer) Active() bool {
	return t.active
}

// StartedAt returns the start of the current period; ok is false when idle.
func (t *Timer) StartedAt() (start time.Time, ok bool) {
	return t.start, t.active
}

// Seconds returns the duration reported by the last update.
func (t *Timer) Seconds() int {
	return t.seconds
}
