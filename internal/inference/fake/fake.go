// Package fake provides a deterministic inference runtime for tests.
//
// The fake detector treats strongly red pixels (R channel above the midpoint of
// the normalized range) as face pixels. The input is split into a left and a
// right half; each half with face pixels yields one candidate whose box encloses
// those pixels and whose score is the brightest red value in the half. Outputs
// use the UltraFace layout: scores [1,2,2] and relative corner boxes [1,2,4].
//
// The fake embedder returns an 8-dim vector: the mean of each channel, the mean
// of the red channel over the four quadrants and the standard deviation of the
// green channel.
package fake

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/kozaktomas/face-recognizer/internal/inference"
)

var (
	// DetectorModel is a valid fake detector model file.
	DetectorModel = []byte("FAKE-DETECTOR\x00v1")
	// EmbedderModel is a valid fake embedder model file.
	EmbedderModel = []byte("FAKE-EMBEDDER\x00v1")
)

// EmbeddingDim is the length of fake embeddings.
const EmbeddingDim = 8

// ErrUnsupportedFormat is returned for model bytes that are not a fake model.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Runtime is a fake inference.Runtime that records load and close calls.
type Runtime struct {
	Loads  atomic.Int64 // successful loads
	Closes atomic.Int64
	// RunError, when set, is returned by every Run call.
	RunError error
}

// NewRuntime creates a fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Load parses fake model bytes.
func (r *Runtime) Load(data []byte) (inference.Model, error) {
	if len(data) == 0 {
		return nil, inference.ErrEmptyModel
	}
	switch {
	case bytes.HasPrefix(data, []byte("FAKE-DETECTOR")):
		r.Loads.Add(1)
		return &detector{rt: r}, nil
	case bytes.HasPrefix(data, []byte("FAKE-EMBEDDER")):
		r.Loads.Add(1)
		return &embedder{rt: r}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func checkImageInput(t inference.Tensor) (h, w int, err error) {
	if err := t.Validate(); err != nil {
		return 0, 0, err
	}
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[1] != 3 {
		return 0, 0, fmt.Errorf("expected input shape [1,3,H,W], got %v", t.Shape)
	}
	return t.Shape[2], t.Shape[3], nil
}

type detector struct {
	rt *Runtime
}

func (d *detector) Run(input inference.Tensor) ([]inference.Tensor, error) {
	if d.rt.RunError != nil {
		return nil, d.rt.RunError
	}
	h, w, err := checkImageInput(input)
	if err != nil {
		return nil, err
	}
	red := input.Data[:h*w]

	scores := inference.NewTensor(1, 2, 2)
	boxes := inference.NewTensor(1, 2, 4)

	for half := range 2 {
		x0, x1 := 0, w/2
		if half == 1 {
			x0, x1 = w/2, w
		}
		minX, minY, maxX, maxY := w, h, -1, -1
		best := float32(-1)
		for y := range h {
			for x := x0; x < x1; x++ {
				v := red[y*w+x]
				if v <= 0.5 {
					continue
				}
				minX, minY = min(minX, x), min(minY, y)
				maxX, maxY = max(maxX, x), max(maxY, y)
				best = max(best, v)
			}
		}
		if maxX < 0 {
			scores.Data[half*2] = 1
			continue
		}
		score := min((best+1)/2, 1)
		scores.Data[half*2] = 1 - score
		scores.Data[half*2+1] = score
		boxes.Data[half*4] = float32(minX) / float32(w)
		boxes.Data[half*4+1] = float32(minY) / float32(h)
		boxes.Data[half*4+2] = float32(maxX+1) / float32(w)
		boxes.Data[half*4+3] = float32(maxY+1) / float32(h)
	}

	return []inference.Tensor{scores, boxes}, nil
}

func (d *detector) Close() error {
	d.rt.Closes.Add(1)
	return nil
}

type embedder struct {
	rt *Runtime
}

func (e *embedder) Run(input inference.Tensor) ([]inference.Tensor, error) {
	if e.rt.RunError != nil {
		return nil, e.rt.RunError
	}
	h, w, err := checkImageInput(input)
	if err != nil {
		return nil, err
	}
	plane := h * w
	out := inference.NewTensor(1, EmbeddingDim)

	for c := range 3 {
		out.Data[c] = mean(input.Data[c*plane : (c+1)*plane])
	}

	red := input.Data[:plane]
	for q := range 4 {
		qx, qy := q%2, q/2
		var sum float32
		var n int
		for y := qy * h / 2; y < (qy+1)*h/2; y++ {
			for x := qx * w / 2; x < (qx+1)*w/2; x++ {
				sum += red[y*w+x]
				n++
			}
		}
		if n > 0 {
			out.Data[3+q] = sum / float32(n)
		}
	}

	green := input.Data[plane : 2*plane]
	m := mean(green)
	var variance float64
	for _, v := range green {
		d := float64(v - m)
		variance += d * d
	}
	out.Data[7] = float32(math.Sqrt(variance / float64(len(green))))

	return []inference.Tensor{out}, nil
}

func (e *embedder) Close() error {
	e.rt.Closes.Add(1)
	return nil
}

func mean(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	return float32(sum / float64(len(v)))
}
