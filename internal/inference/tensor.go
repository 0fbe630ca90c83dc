package inference

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used by the bundled model.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Plain [0,1] scaling, as expected by the object detector.
var (
	ZeroMean = [3]float32{0, 0, 0}
	UnitStd  = [3]float32{1, 1, 1}
)

// ErrShapeMismatch is returned when a tensor's data does not fill its shape.
var ErrShapeMismatch = errors.New("tensor data does not match shape")

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// NumElements returns the product of the shape dimensions.
func (t Tensor) NumElements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Data fills Shape exactly.
func (t Tensor) Validate() error {
	if n := t.NumElements(); n == 0 || n != len(t.Data) {
		return fmt.Errorf("%w: shape %v, %d values", ErrShapeMismatch, t.Shape, len(t.Data))
	}
	return nil
}

// ImageToTensor scales img to width x height with bilinear filtering and
// returns a [1,3,H,W] tensor normalised per channel: (v/255 - mean) / std.
func ImageToTensor(img image.Image, width, height int, mean, std [3]float32) (Tensor, error) {
	if width <= 0 || height <= 0 {
		return Tensor{}, fmt.Errorf("invalid tensor size %dx%d", width, height)
	}
	if img == nil || img.Bounds().Empty() {
		return Tensor{}, errors.New("empty image")
	}
	for i, s := range std {
		if s == 0 {
			return Tensor{}, fmt.Errorf("std[%d] is zero", i)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4:]
			i := y*width + x
			for ch := 0; ch < 3; ch++ {
				v := float32(px[ch]) / 255
				data[ch*plane+i] = (v - mean[ch]) / std[ch]
			}
		}
	}
	return Tensor{Shape: []int{1, 3, height, width}, Data: data}, nil
}
