// Package facematch holds the geometry and label helpers shared by the face
// pipeline, the registry and the web handlers.
package facematch

import (
	"image"
	"math"
	"sort"
)

// BoundingBox is a detected face in pixel coordinates of the decoded image.
type BoundingBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Corners returns the box as [x1, y1, x2, y2].
func (b BoundingBox) Corners() []float64 {
	return []float64{b.X, b.Y, b.X + b.Width, b.Y + b.Height}
}

// Rect returns the integer pixel rectangle covering the box, clipped to bounds.
func (b BoundingBox) Rect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		bounds.Min.X+int(math.Floor(b.X)),
		bounds.Min.Y+int(math.Floor(b.Y)),
		bounds.Min.X+int(math.Ceil(b.X+b.Width)),
		bounds.Min.Y+int(math.Ceil(b.Y+b.Height)),
	)
	return r.Intersect(bounds)
}

// FromRelativeCorners converts relative [x1, y1, x2, y2] coordinates (0-1) into
// a pixel box for an image of the given size. Coordinates are clamped to the image.
func FromRelativeCorners(corners []float64, confidence float64, width, height int) BoundingBox {
	if len(corners) != 4 || width <= 0 || height <= 0 {
		return BoundingBox{Confidence: confidence}
	}
	x1 := clamp01(corners[0]) * float64(width)
	y1 := clamp01(corners[1]) * float64(height)
	x2 := clamp01(corners[2]) * float64(width)
	y2 := clamp01(corners[3]) * float64(height)
	return BoundingBox{
		X:          x1,
		Y:          y1,
		Width:      max(0, x2-x1),
		Height:     max(0, y2-y1),
		Confidence: confidence,
	}
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// better reports whether a should be preferred over b as the primary face.
// Higher confidence wins, then the larger area. Equal boxes keep input order.
func better(a, b BoundingBox) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Area() > b.Area()
}

// SelectPrimary returns the index of the primary face among candidates, or -1
// when there are none. Exact ties go to the earliest candidate.
func SelectPrimary(candidates []BoundingBox) int {
	best := -1
	for i, c := range candidates {
		if best < 0 || better(c, candidates[best]) {
			best = i
		}
	}
	return best
}

// NonMaxSuppression keeps the strongest boxes and drops any box overlapping an
// already kept one by more than iouThreshold. The result is ordered the same
// way SelectPrimary ranks faces, so the first element is the primary face.
func NonMaxSuppression(candidates []BoundingBox, iouThreshold float64) []BoundingBox {
	ordered := make([]BoundingBox, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return better(ordered[i], ordered[j])
	})

	kept := make([]BoundingBox, 0, len(ordered))
	for _, c := range ordered {
		suppressed := false
		for _, k := range kept {
			if ComputeIoU(c.Corners(), k.Corners()) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
