// Package render draws the palming status onto camera frames and encodes them for streaming.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/palmrest/internal/gesture"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// ErrEncode is returned when a frame cannot be encoded.
var ErrEncode = errors.New("encode frame")

var (
	// ActiveColor is used while palming.
	ActiveColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// IdleColor is used for waiting and warning messages.
	IdleColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

	textOrigin = image.Pt(10, 50)
)

// Style returns the overlay color and stroke thickness for a status.
func Style(s gesture.Status) (color.RGBA, int) {
	if s.Palming {
		return ActiveColor, 3
	}
	return IdleColor, 2
}

// Renderer annotates frames and encodes them as JPEG.
type Renderer struct {
	quality int
}

// New creates a Renderer. Quality outside 1-100 falls back to DefaultQuality.
func New(quality int) *Renderer {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Renderer{quality: quality}
}

// Annotate draws the status text onto frame in place.
func (r *Renderer) Annotate(frame *gocv.Mat, s gesture.Status) {
	c, thickness := Style(s)
	gocv.PutText(frame, s.Text(), textOrigin, gocv.FontHersheySimplex, 1, c, thickness)
}

// Encode compresses frame to JPEG bytes.
func (r *Renderer) Encode(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrEncode)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, r.quality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy out.
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Render annotates frame and returns it encoded.
func (r *Renderer) Render(frame *gocv.Mat, s gesture.Status) ([]byte, error) {
	r.Annotate(frame, s)
	return r.Encode(*frame)
}
