package rimage

import (
	"image"
	"image/draw"

	"gonum.org/v1/gonum/mat"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Size() == g2.Bounds().Size()
}

// MakeGray converts any image into an image.Gray whose bounds start at the origin.
func MakeGray(pic image.Image) *image.Gray {
	if gray, ok := pic.(*image.Gray); ok && gray.Bounds().Min == (image.Point{}) {
		return gray
	}
	result := image.NewGray(image.Rectangle{Max: pic.Bounds().Size()})
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// GrayToFloat64 returns the luminance of a gray image as a (rows=height, cols=width) matrix with
// values in [0, 255].
func GrayToFloat64(gray *image.Gray) *mat.Dense {
	size := gray.Bounds().Size()
	out := mat.NewDense(size.Y, size.X, nil)
	for y := 0; y < size.Y; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < size.X; x++ {
			out.Set(y, x, float64(row[x]))
		}
	}
	return out
}
