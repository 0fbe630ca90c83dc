package geometry

import "errors"

// Preferred preview/recording resolution (720p).
const (
	TargetWidth  = 1280
	TargetHeight = 720
)

// ErrNoCandidates is returned when size selection gets an empty list.
var ErrNoCandidates = errors.New("no candidate sizes")

// Size is a stream resolution in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Area returns width × height.
func (s Size) Area() int { return s.Width * s.Height }

// ChooseOptimalSize picks targetWidth x targetHeight if the device offers it,
// otherwise the candidate with the smallest area (first one on ties).
func ChooseOptimalSize(candidates []Size, targetWidth, targetHeight int) (Size, error) {
	if len(candidates) == 0 {
		return Size{}, ErrNoCandidates
	}
	for _, c := range candidates {
		if c.Width == targetWidth && c.Height == targetHeight {
			return c, nil
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Area() < best.Area() {
			best = c
		}
	}
	return best, nil
}
