package geometry

import "math"

// Zoom limits and step used by the zoom buttons.
const (
	MinZoom  = 1.0
	MaxZoom  = 10.0
	ZoomStep = 0.1
)

// ZoomState holds the digital zoom level and the sensor array it applies to.
// Level always stays within [MinZoom, MaxZoom].
type ZoomState struct {
	Level        float64 `json:"level"`
	SensorWidth  int     `json:"sensor_width"`
	SensorHeight int     `json:"sensor_height"`
}

// NewZoomState returns a state at 1x for the given active array.
func NewZoomState(sensorWidth, sensorHeight int) ZoomState {
	return ZoomState{Level: MinZoom, SensorWidth: sensorWidth, SensorHeight: sensorHeight}
}

// ZoomIn increases the level by one step unless already at MaxZoom.
// It reports whether the level changed.
func (z *ZoomState) ZoomIn() bool {
	if z.Level >= MaxZoom {
		return false
	}
	z.Level = snap(math.Min(z.Level+ZoomStep, MaxZoom))
	return true
}

// ZoomOut decreases the level by one step unless already at MinZoom.
// It reports whether the level changed.
func (z *ZoomState) ZoomOut() bool {
	if z.Level <= MinZoom {
		return false
	}
	z.Level = snap(math.Max(z.Level-ZoomStep, MinZoom))
	return true
}

// Crop returns the crop rectangle for the current level.
func (z ZoomState) Crop() Rect {
	return CropRegion(z.Level, z.SensorWidth, z.SensorHeight)
}

// snap keeps the level on the 0.1 grid so repeated steps do not drift.
func snap(v float64) float64 {
	return math.Round(v/ZoomStep) * ZoomStep
}
