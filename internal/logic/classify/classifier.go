package classify

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/inference"
)

var (
	// ErrLabelMismatch is returned when the model output and the label
	// list differ in length.
	ErrLabelMismatch = errors.New("logit count does not match labels")
	// ErrBadImage wraps decode failures in ClassifyImage.
	ErrBadImage = errors.New("cannot decode image")
)

// Result is one classification outcome.
type Result struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Probabilities []float32 `json:"probabilities"`
}

// Confidence returns the probability of the chosen label.
func (r Result) Confidence() float32 {
	if r.Index < 0 || r.Index >= len(r.Probabilities) {
		return 0
	}
	return r.Probabilities[r.Index]
}

// Classifier maps model logits to labelled results.
type Classifier struct {
	module inference.Module
	labels []string
	width  int
	height int

	mu  sync.Mutex
	buf []float32
}

// NewClassifier builds a classifier for labels. width and height are the
// model input size used by ClassifyImage.
func NewClassifier(module inference.Module, labels []string, width, height int) (*Classifier, error) {
	if len(labels) == 0 {
		return nil, errors.New("at least one label is required")
	}
	return &Classifier{
		module: module,
		labels: append([]string(nil), labels...),
		width:  width,
		height: height,
		buf:    make([]float32, len(labels)),
	}, nil
}

// Labels returns a copy of the class labels.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Classify runs the model on input and returns the most probable label.
func (c *Classifier) Classify(ctx context.Context, input inference.Tensor) (Result, error) {
	logits, err := c.module.Forward(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("forward: %w", err)
	}
	return c.fromLogits(logits)
}

// ClassifyImage decodes a JPEG or PNG image, preprocesses it and classifies it.
func (c *Classifier) ClassifyImage(ctx context.Context, r io.Reader) (Result, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	debug.Verbose("Decoded %s image %v", format, img.Bounds().Size())

	tensor, err := inference.ImageToTensor(img, c.width, c.height, inference.ImageNetMean, inference.ImageNetStd)
	if err != nil {
		return Result{}, fmt.Errorf("preprocess: %w", err)
	}
	return c.Classify(ctx, tensor)
}

func (c *Classifier) fromLogits(logits []float32) (Result, error) {
	if len(logits) == 0 {
		return Result{}, ErrEmptyLogits
	}
	if len(logits) != len(c.labels) {
		return Result{}, fmt.Errorf("%w: %d logits, %d labels", ErrLabelMismatch, len(logits), len(c.labels))
	}

	c.mu.Lock()
	probs, err := Softmax(c.buf, logits)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	idx := ArgMax(probs)
	out := append([]float32(nil), probs...)
	c.mu.Unlock()

	res := Result{
		ID:            uuid.NewString(),
		Label:         c.labels[idx],
		Index:         idx,
		Probabilities: out,
	}
	debug.Classification(res.ID, res.Label, res.Confidence())
	return res, nil
}
