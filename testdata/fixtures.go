// Package testdata builds synthetic frames and landmark scripts for end-to-end tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/palmrest/internal/detector"
)

// Frames returns n solid frames of the given size with a varying gray level.
// Call the returned func to release them.
func Frames(n, width, height int) ([]*gocv.Mat, func(), error) {
	if n <= 0 || width <= 0 || height <= 0 {
		return nil, func() {}, fmt.Errorf("invalid frame spec %dx%d x%d", width, height, n)
	}

	frames := make([]*gocv.Mat, 0, n)
	release := func() {
		for _, f := range frames {
			f.Close()
		}
	}

	for i := 0; i < n; i++ {
		mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
		level := uint8(40 + (i*20)%200)
		gocv.Rectangle(&mat, image.Rect(0, 0, width, height), color.RGBA{R: level, G: level, B: level}, -1)
		frames = append(frames, &mat)
	}
	return frames, release, nil
}

// RestSession scripts a user who shows their face, palms for hold frames,
// then lowers their hands.
func RestSession(hold int) []detector.Landmarks {
	seq := []detector.Landmarks{detector.FaceLandmarks()}
	for i := 0; i < hold; i++ {
		seq = append(seq, detector.PalmingLandmarks())
	}
	return append(seq, detector.RestingHandsLandmarks())
}
