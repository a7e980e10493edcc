// Package detector provides face and hand landmark extraction for palming detection.
package detector

import "math"

// Landmark indices following MediaPipe Holistic convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	// LeftEyeOuter is the Face Mesh index of the left eye's outer corner.
	LeftEyeOuter = 33
	// RightEyeOuter is the Face Mesh index of the right eye's outer corner.
	RightEyeOuter = 263
	// Wrist is the hand landmark index of the wrist.
	Wrist = 0
)

// Point is a 2D landmark position in normalized frame coordinates, both axes in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Inside reports whether p lies strictly within [margin, 1-margin] on both axes.
func (p Point) Inside(margin float64) bool {
	return margin < p.X && p.X < 1-margin &&
		margin < p.Y && p.Y < 1-margin
}

// FaceReference holds the outer eye corners used as palming anchors.
type FaceReference struct {
	LeftEye  Point `json:"left_eye"`
	RightEye Point `json:"right_eye"`
}

// Landmarks is the per-frame output of a Detector.
// A nil field means that feature was not detected in the frame.
type Landmarks struct {
	Face      *FaceReference `json:"face,omitempty"`
	LeftHand  *Point         `json:"left_hand,omitempty"`
	RightHand *Point         `json:"right_hand,omitempty"`
}

// HasHands reports whether both hand anchors are present.
func (l Landmarks) HasHands() bool {
	return l.LeftHand != nil && l.RightHand != nil
}
