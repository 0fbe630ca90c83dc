package classify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/inference"
	"github.com/developer27/falconeye/internal/logic/geometry"
)

// DefaultDetectionThreshold is the minimum confidence a box needs to be kept.
const DefaultDetectionThreshold = 0.08

// Detector input frame used when none is configured.
const (
	DefaultDetectorWidth  = 640
	DefaultDetectorHeight = 480
)

// detectionStride is the row layout of the detector output:
// x1, y1, x2, y2, confidence, class id.
const detectionStride = 6

// ErrBadDetections is returned when the detector output is not a whole
// number of rows.
var ErrBadDetections = errors.New("detector output is not a multiple of 6 values")

// Detection is one labelled box.
type Detection struct {
	ClassID    int           `json:"class_id"`
	Label      string        `json:"label"`
	Confidence float32       `json:"confidence"`
	Box        geometry.Rect `json:"box"`
}

// Text is the overlay caption, e.g. "car: 45.0%".
func (d Detection) Text() string {
	return fmt.Sprintf("%s: %.1f%%", d.Label, d.Confidence*100)
}

// DetectionResult holds the boxes found in one image, in that image's
// pixel coordinates.
type DetectionResult struct {
	ID         string      `json:"id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Detections []Detection `json:"detections"`
}

// ParseDetections turns raw detector rows into detections. Rows at or
// below threshold are dropped; the rest are sorted by confidence, highest
// first. Class ids without a label are named "class N".
func ParseDetections(out []float32, labels []string, threshold float32) ([]Detection, error) {
	if len(out)%detectionStride != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadDetections, len(out))
	}
	dets := make([]Detection, 0, len(out)/detectionStride)
	for i := 0; i < len(out); i += detectionStride {
		row := out[i : i+detectionStride]
		conf := row[4]
		if conf <= threshold {
			continue
		}
		id := int(row[5])
		dets = append(dets, Detection{
			ClassID:    id,
			Label:      labelFor(labels, id),
			Confidence: conf,
			Box: geometry.Rect{
				Left:   int(row[0]),
				Top:    int(row[1]),
				Right:  int(row[2]),
				Bottom: int(row[3]),
			},
		})
	}
	sort.SliceStable(dets, func(a, b int) bool { return dets[a].Confidence > dets[b].Confidence })
	return dets, nil
}

func labelFor(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return "class " + strconv.Itoa(id)
}

// scaleBox maps r from a fromW x fromH frame onto a toW x toH one,
// truncating and clamping to the target bounds.
func scaleBox(r geometry.Rect, fromW, fromH, toW, toH int) geometry.Rect {
	sx := float32(toW) / float32(fromW)
	sy := float32(toH) / float32(fromH)
	return geometry.Rect{
		Left:   clamp(int(float32(r.Left)*sx), toW),
		Top:    clamp(int(float32(r.Top)*sy), toH),
		Right:  clamp(int(float32(r.Right)*sx), toW),
		Bottom: clamp(int(float32(r.Bottom)*sy), toH),
	}
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// Detector runs an object detection model on frames resized to its input
// size and keeps the boxes above a confidence threshold.
type Detector struct {
	module    inference.Module
	labels    []string
	threshold float32
	width     int
	height    int
}

// NewDetector builds a detector. threshold must be in [0, 1).
func NewDetector(module inference.Module, labels []string, threshold float64, width, height int) (*Detector, error) {
	if threshold < 0 || threshold >= 1 {
		return nil, fmt.Errorf("detection threshold must be in [0, 1), got %v", threshold)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid detector input size %dx%d", width, height)
	}
	return &Detector{
		module:    module,
		labels:    append([]string(nil), labels...),
		threshold: float32(threshold),
		width:     width,
		height:    height,
	}, nil
}

// Detect runs the model on a preprocessed frame. Boxes are in the
// detector's input coordinates.
func (d *Detector) Detect(ctx context.Context, input inference.Tensor) (DetectionResult, error) {
	out, err := d.module.Forward(ctx, input)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("forward: %w", err)
	}
	dets, err := ParseDetections(out, d.labels, d.threshold)
	if err != nil {
		return DetectionResult{}, err
	}
	res := DetectionResult{ID: uuid.NewString(), Width: d.width, Height: d.height, Detections: dets}
	debug.Info("Detection %s: %d objects", res.ID, len(dets))
	for _, det := range dets {
		debug.Verbose("  %s at %+v", det.Text(), det.Box)
	}
	return res, nil
}

// DetectImage decodes a JPEG or PNG image, resizes it to the detector
// input and returns boxes mapped back onto the original image.
func (d *Detector) DetectImage(ctx context.Context, r io.Reader) (DetectionResult, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	tensor, err := inference.ImageToTensor(img, d.width, d.height, inference.ZeroMean, inference.UnitStd)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("preprocess: %w", err)
	}
	res, err := d.Detect(ctx, tensor)
	if err != nil {
		return DetectionResult{}, err
	}

	size := img.Bounds().Size()
	for i := range res.Detections {
		res.Detections[i].Box = scaleBox(res.Detections[i].Box, d.width, d.height, size.X, size.Y)
	}
	res.Width, res.Height = size.X, size.Y
	return res, nil
}
