package geometry

// Rect is a crop region in sensor active-array coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top }

// CropRegion computes the centered crop rectangle that simulates a digital
// zoom of zoomLevel on a sensor array of sensorWidth x sensorHeight pixels.
//
//	ratio         = 1 / zoomLevel
//	croppedWidth  = sensorWidth  × ratio
//	croppedHeight = sensorHeight × ratio
//	left          = (sensorWidth  - croppedWidth)  / 2
//	top           = (sensorHeight - croppedHeight) / 2
//
// The arithmetic runs in float32 and coordinates are truncated toward zero,
// not rounded, so the crop keeps the pixel alignment the camera HAL sees
// from a single-precision zoom factor. The explicit conversions stop the
// compiler from fusing the multiply and subtract. zoomLevel is not clamped
// here: callers keep it in [MinZoom, MaxZoom] through ZoomState.
func CropRegion(zoomLevel float64, sensorWidth, sensorHeight int) Rect {
	ratio := float32(1 / float32(zoomLevel))
	croppedWidth := float32(float32(sensorWidth) * ratio)
	croppedHeight := float32(float32(sensorHeight) * ratio)

	left := int(float32(float32(sensorWidth)-croppedWidth) / 2)
	top := int(float32(float32(sensorHeight)-croppedHeight) / 2)
	right := int(float32(float32(left) + croppedWidth))
	bottom := int(float32(float32(top) + croppedHeight))

	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}
