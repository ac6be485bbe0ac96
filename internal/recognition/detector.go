package recognition

import (
	"fmt"
	"image"
	"math"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/inference"
)

// detectorOutputs finds the scores [1,N,2] and boxes [1,N,4] tensors among the
// detector outputs. Output order differs between exported models, so the
// tensors are told apart by their last dimension.
func detectorOutputs(outputs []inference.Tensor) (scores, boxes inference.Tensor, err error) {
	var haveScores, haveBoxes bool
	for _, t := range outputs {
		if err := t.Validate(); err != nil {
			return scores, boxes, fmt.Errorf("%w: detector output: %v", ErrInference, err)
		}
		switch t.LastDim() {
		case 2:
			scores, haveScores = t, true
		case 4:
			boxes, haveBoxes = t, true
		}
	}
	if !haveScores || !haveBoxes {
		return scores, boxes, fmt.Errorf("%w: detector must output scores [1,N,2] and boxes [1,N,4], got %d tensors",
			ErrInference, len(outputs))
	}
	if len(scores.Data)/2 != len(boxes.Data)/4 {
		return scores, boxes, fmt.Errorf("%w: detector scores cover %d candidates, boxes %d",
			ErrInference, len(scores.Data)/2, len(boxes.Data)/4)
	}
	return scores, boxes, nil
}

// runDetector returns every candidate at or above the score threshold in
// detector order, in pixel coordinates of img.
func runDetector(model inference.Model, img image.Image, cfg config.DetectorConfig) ([]facematch.BoundingBox, error) {
	input := imaging.ToTensor(img, cfg.InputWidth, cfg.InputHeight, cfg.Mean, cfg.Std)
	outputs, err := model.Run(input)
	if err != nil {
		return nil, fmt.Errorf("%w: detector: %v", ErrInference, err)
	}

	scores, boxes, err := detectorOutputs(outputs)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	n := len(scores.Data) / 2
	var candidates []facematch.BoundingBox
	for i := range n {
		score := float64(scores.Data[2*i+1])
		corners := []float64{
			float64(boxes.Data[4*i]),
			float64(boxes.Data[4*i+1]),
			float64(boxes.Data[4*i+2]),
			float64(boxes.Data[4*i+3]),
		}
		if !finite(score) || !finite(corners...) {
			return nil, fmt.Errorf("%w: detector candidate %d is not finite", ErrInference, i)
		}
		if score < cfg.ScoreThreshold {
			continue
		}
		box := facematch.FromRelativeCorners(corners, min(score, 1), b.Dx(), b.Dy())
		if box.Area() == 0 {
			continue
		}
		candidates = append(candidates, box)
	}
	return candidates, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// runEmbedder crops img to box and returns the embedder output as a vector.
func runEmbedder(model inference.Model, img image.Image, box facematch.BoundingBox, cfg config.EmbedderConfig) ([]float32, error) {
	rect := box.Rect(img.Bounds())
	if rect.Empty() {
		return nil, ErrNoFaceFound
	}
	face := imaging.Crop(img, rect)
	input := imaging.ToTensor(face, cfg.InputWidth, cfg.InputHeight, cfg.Mean, cfg.Std)

	outputs, err := model.Run(input)
	if err != nil {
		return nil, fmt.Errorf("%w: embedder: %v", ErrInference, err)
	}
	if len(outputs) == 0 || len(outputs[0].Data) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no output", ErrInference)
	}

	embedding := make([]float32, len(outputs[0].Data))
	copy(embedding, outputs[0].Data)
	return embedding, nil
}
