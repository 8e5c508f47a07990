package rimage

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/utils"
)

// Kernel is a convolution filter stored row-major.
type Kernel struct {
	Content [][]float64
	Height  int
	Width   int
}

// NewKernel checks that every row of content has the same length and wraps it in a Kernel.
func NewKernel(content [][]float64) (*Kernel, error) {
	if len(content) == 0 || len(content[0]) == 0 {
		return nil, errors.New("kernel cannot be empty")
	}
	width := len(content[0])
	for i, row := range content {
		if len(row) != width {
			return nil, errors.Errorf("kernel row %d has %d elements, expected %d", i, len(row), width)
		}
	}
	return &Kernel{Content: content, Height: len(content), Width: width}, nil
}

// Size returns the kernel size as (width, height).
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// At returns the kernel element at column x, row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{[][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}, 3, 3}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{[][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}, 3, 3}
}

// ConvolveGrayFloat64 implements a gray float64 image convolution with the Kernel filter. The
// kernel is centered on each pixel and the border is replicated. There is no clamping.
func ConvolveGrayFloat64(m *mat.Dense, filter *Kernel) (*mat.Dense, error) {
	if filter == nil {
		return nil, errors.New("convolution needs a kernel")
	}
	h, w := m.Dims()
	result := mat.NewDense(h, w, nil)
	anchor := image.Point{filter.Width / 2, filter.Height / 2}
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum := 0.
		for ky := 0; ky < filter.Height; ky++ {
			yy := utils.ClampInt(y+ky-anchor.Y, 0, h-1)
			for kx := 0; kx < filter.Width; kx++ {
				xx := utils.ClampInt(x+kx-anchor.X, 0, w-1)
				sum += m.At(yy, xx) * filter.At(kx, ky)
			}
		}
		result.Set(y, x, sum)
	})
	return result, nil
}

// ConvolveSeparableFloat64 convolves m with the outer product of a column kernel (applied along
// y) and a row kernel (applied along x). Both kernels are centered and the border is replicated.
func ConvolveSeparableFloat64(m *mat.Dense, rowKernel, colKernel []float64) *mat.Dense {
	h, w := m.Dims()
	tmp := mat.NewDense(h, w, nil)
	rowHalf := len(rowKernel) / 2
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum := 0.
		for i, k := range rowKernel {
			sum += k * m.At(y, utils.ClampInt(x+i-rowHalf, 0, w-1))
		}
		tmp.Set(y, x, sum)
	})

	result := mat.NewDense(h, w, nil)
	colHalf := len(colKernel) / 2
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum := 0.
		for i, k := range colKernel {
			sum += k * tmp.At(utils.ClampInt(y+i-colHalf, 0, h-1), x)
		}
		result.Set(y, x, sum)
	})
	return result
}
