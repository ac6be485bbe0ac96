package recognition

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/inference"
)

// staticModel returns the same outputs for every input.
type staticModel struct {
	outputs []inference.Tensor
}

func (m *staticModel) Run(inference.Tensor) ([]inference.Tensor, error) { return m.outputs, nil }
func (m *staticModel) Close() error                                     { return nil }

func TestDetectorOutputs_AnyOrder(t *testing.T) {
	scores := inference.Tensor{Shape: []int{1, 3, 2}, Data: make([]float32, 6)}
	boxes := inference.Tensor{Shape: []int{1, 3, 4}, Data: make([]float32, 12)}

	for _, outputs := range [][]inference.Tensor{{scores, boxes}, {boxes, scores}} {
		s, b, err := detectorOutputs(outputs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.LastDim() != 2 || b.LastDim() != 4 {
			t.Errorf("tensors not identified: %v %v", s.Shape, b.Shape)
		}
	}
}

func TestDetectorOutputs_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		outputs []inference.Tensor
	}{
		{"none", nil},
		{"scores only", []inference.Tensor{{Shape: []int{1, 2, 2}, Data: make([]float32, 4)}}},
		{"count mismatch", []inference.Tensor{
			{Shape: []int{1, 2, 2}, Data: make([]float32, 4)},
			{Shape: []int{1, 3, 4}, Data: make([]float32, 12)},
		}},
		{"bad data length", []inference.Tensor{
			{Shape: []int{1, 2, 2}, Data: make([]float32, 3)},
			{Shape: []int{1, 2, 4}, Data: make([]float32, 8)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := detectorOutputs(tt.outputs)
			if !errors.Is(err, ErrInference) {
				t.Errorf("expected ErrInference, got %v", err)
			}
		})
	}
}

func TestRunDetector_NonFiniteOutput(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	cfg := config.DetectorConfig{InputWidth: 4, InputHeight: 4, Std: 1, ScoreThreshold: 0.7}
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	tests := []struct {
		name   string
		scores []float32
		boxes  []float32
	}{
		{"nan score first", []float32{0, nan, 0, 0.99}, []float32{0, 0, 0.5, 0.5, 0.5, 0.5, 1, 1}},
		{"inf score", []float32{0, inf, 0, 0.99}, []float32{0, 0, 0.5, 0.5, 0.5, 0.5, 1, 1}},
		{"nan corner", []float32{0, 0.99, 0, 0.1}, []float32{0, nan, 0.5, 0.5, 0.5, 0.5, 1, 1}},
		{"nan below threshold", []float32{0, 0.99, 0, 0.1}, []float32{0, 0, 0.5, 0.5, nan, 0.5, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &staticModel{outputs: []inference.Tensor{
				{Shape: []int{1, 2, 2}, Data: tt.scores},
				{Shape: []int{1, 2, 4}, Data: tt.boxes},
			}}
			boxes, err := runDetector(model, img, cfg)
			if !errors.Is(err, ErrInference) {
				t.Errorf("expected ErrInference, got %v (boxes %v)", err, boxes)
			}
		})
	}
}

func TestRunDetector_FiniteOutput(t *testing.T) {
	cfg := config.DetectorConfig{InputWidth: 4, InputHeight: 4, Std: 1, ScoreThreshold: 0.7}
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	model := &staticModel{outputs: []inference.Tensor{
		{Shape: []int{1, 2, 2}, Data: []float32{0, 0.2, 0, 0.99}},
		{Shape: []int{1, 2, 4}, Data: []float32{0, 0, 0.5, 0.5, 0.5, 0.5, 1, 1}},
	}}

	boxes, err := runDetector(model, img, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("expected 1 candidate above threshold, got %d", len(boxes))
	}
	if boxes[0].X != 50 || boxes[0].Width != 50 {
		t.Errorf("unexpected box %+v", boxes[0])
	}
	if c := boxes[0].Confidence; c < 0.98 || c > 1 {
		t.Errorf("confidence out of range: %v", c)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{ErrNoFaceFound, KindNoFaceFound},
		{ErrEmptyRegistry, KindEmptyRegistry},
		{ErrDecode, KindDecodeError},
		{errors.New("db down"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}
}
