package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns a fixed result, or steps through a scripted sequence when one is set.
type MockDetector struct {
	mu       sync.Mutex
	result   Landmarks
	sequence []Landmarks
	calls    int
	err      error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetResult sets the landmarks returned by every Detect call.
func (m *MockDetector) SetResult(lm Landmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = lm
	m.sequence = nil
}

// SetSequence scripts one result per Detect call. Once exhausted, the last entry repeats.
func (m *MockDetector) SetSequence(seq []Landmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured landmarks or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Landmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++

	if m.err != nil {
		return Landmarks{}, m.err
	}
	if len(m.sequence) == 0 {
		return m.result, nil
	}
	if i >= len(m.sequence) {
		i = len(m.sequence) - 1
	}
	return m.sequence[i], nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FaceAt returns a FaceReference with eye corners at the given positions.
func FaceAt(lx, ly, rx, ry float64) *FaceReference {
	return &FaceReference{
		LeftEye:  Point{X: lx, Y: ly},
		RightEye: Point{X: rx, Y: ry},
	}
}

// PointAt returns a pointer to a Point, for building hand anchors in tests.
func PointAt(x, y float64) *Point {
	return &Point{X: x, Y: y}
}

// FaceLandmarks returns a preset frame with an uncovered face and no hands.
func FaceLandmarks() Landmarks {
	return Landmarks{Face: FaceAt(0.40, 0.40, 0.60, 0.40)}
}

// PalmingLandmarks returns a preset frame with the face hidden and both wrists 0.10 below
// the eye corners of FaceLandmarks.
func PalmingLandmarks() Landmarks {
	return Landmarks{
		LeftHand:  PointAt(0.40, 0.50),
		RightHand: PointAt(0.60, 0.50),
	}
}

// RestingHandsLandmarks returns a preset frame with hands lowered far from the eyes and no face.
func RestingHandsLandmarks() Landmarks {
	return Landmarks{
		LeftHand:  PointAt(0.30, 0.90),
		RightHand: PointAt(0.70, 0.90),
	}
}
