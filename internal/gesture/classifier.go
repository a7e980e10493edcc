// Package gesture classifies the palming eye-rest gesture from per-frame landmarks
// and times how long it is held.
package gesture

import (
	"time"

	"github.com/ayusman/palmrest/internal/detector"
)

// WarningCenterHands is shown when the left wrist drifts toward the frame edge.
const WarningCenterHands = "CENTER HANDS"

// Thresholds control the classifier's distance tests. Distances are in normalized
// frame coordinates.
type Thresholds struct {
	// MaxDist is the upper bound of the palming band.
	MaxDist float64
	// MinDist is the lower bound of the palming band.
	MinDist float64
	// FrameMargin is the border width that triggers the centering warning.
	FrameMargin float64
	// ReleaseBand is added to MaxDist to get the distance that ends palming.
	// Distances between MaxDist and MaxDist+ReleaseBand hold the current state.
	ReleaseBand float64
	// FaceMemory bounds how long a face reference is reused after the face is lost.
	// Zero keeps it until the next detection.
	FaceMemory time.Duration
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxDist:     0.25,
		MinDist:     0.01,
		FrameMargin: 0.05,
		ReleaseBand: 0.1,
	}
}

// Result is the classifier output for one frame.
type Result struct {
	Palming bool
	Warning string
}

// Classifier tracks palming state across frames.
// It is not safe for concurrent use; each stream owns one.
type Classifier struct {
	thresholds Thresholds
	clock      Clock
	palming    bool
	face       *detector.FaceReference
	faceSeen   time.Time
}

// NewClassifier creates a Classifier. A nil clock uses the wall clock.
func NewClassifier(t Thresholds, clock Clock) *Classifier {
	if clock == nil {
		clock = RealClock{}
	}
	return &Classifier{
		thresholds: t,
		clock:      clock,
	}
}

// Palming returns the current palming state.
func (c *Classifier) Palming() bool {
	return c.palming
}

// Face returns the retained face reference, or nil.
func (c *Classifier) Face() *detector.FaceReference {
	return c.face
}

// Update feeds one frame of landmarks and returns the new state.
func (c *Classifier) Update(lm detector.Landmarks) Result {
	var res Result

	// A visible face means the eyes are uncovered; it overrides hand evidence this frame.
	if lm.Face != nil {
		face := *lm.Face
		c.face = &face
		c.faceSeen = c.clock.Now()
		if c.palming {
			c.palming = false
			return res
		}
	} else if c.face != nil && c.thresholds.FaceMemory > 0 &&
		c.clock.Now().Sub(c.faceSeen) > c.thresholds.FaceMemory {
		c.face = nil
	}

	if c.face == nil || !lm.HasHands() {
		res.Palming = c.palming
		return res
	}

	if !lm.LeftHand.Inside(c.thresholds.FrameMargin) {
		res.Warning = WarningCenterHands
	}

	dl := lm.LeftHand.Distance(c.face.LeftEye)
	dr := lm.RightHand.Distance(c.face.RightEye)

	switch {
	case c.inBand(dl) && c.inBand(dr):
		c.palming = true
	case dl > c.releaseDist() || dr > c.releaseDist():
		c.palming = false
	}

	res.Palming = c.palming
	return res
}

// Reset drops all retained state.
func (c *Classifier) Reset() {
	c.palming = false
	c.face = nil
	c.faceSeen = time.Time{}
}

func (c *Classifier) inBand(d float64) bool {
	return c.thresholds.MinDist < d && d < c.thresholds.MaxDist
}

func (c *Classifier) releaseDist() float64 {
	return c.thresholds.MaxDist + c.thresholds.ReleaseBand
}
