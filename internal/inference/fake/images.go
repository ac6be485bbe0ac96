package fake

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// Face is a solid rectangle the fake detector recognizes when Color.R is above 191.
type Face struct {
	Rect  image.Rectangle
	Color color.RGBA
}

// Faces used across tests. Both sit in the left half of a 200x200 image so the
// fake detector sees each as a single candidate.
var (
	Alice = Face{Rect: image.Rect(20, 40, 90, 120), Color: color.RGBA{R: 240, G: 40, B: 40, A: 255}}
	Bob   = Face{Rect: image.Rect(20, 40, 90, 120), Color: color.RGBA{R: 240, G: 200, B: 120, A: 255}}
)

// Image renders faces on a black width x height background as PNG bytes.
func Image(width, height int, faces ...Face) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	for _, f := range faces {
		draw.Draw(img, f.Rect, image.NewUniform(f.Color), image.Point{}, draw.Src)
	}
	return encode(img)
}

// NoFaceImage returns a uniform gray PNG without any face.
func NoFaceImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 100, G: 100, B: 100, A: 255}), image.Point{}, draw.Src)
	return encode(img)
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encoding test image: " + err.Error())
	}
	return buf.Bytes()
}
