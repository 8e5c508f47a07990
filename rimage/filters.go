package rimage

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/utils"
)

// Helper function for convolving matrices together, When used with i, dx := range makeRangeArray(n)
// i is the position within the kernel and dx gives the offset within the image.
// if length is even, then the origin is to the right of middle i.e. 4 -> {-2, -1, 0, 1}.
func makeRangeArray(length int) []int {
	if length <= 0 {
		return make([]int, 0)
	}
	rangeArray := make([]int, length)
	span := length / 2
	for i := range rangeArray {
		rangeArray[i] = i - span
	}
	return rangeArray
}

// GaussianFunction1D takes in a sigma and returns a gaussian function useful for weighing averages or blurring.
func GaussianFunction1D(sigma float64) func(p float64) float64 {
	if sigma <= 0. {
		return func(p float64) float64 {
			return 1.
		}
	}
	return func(p float64) float64 {
		return math.Exp(-0.5*p*p/(sigma*sigma)) / (sigma * math.Sqrt(2.*math.Pi))
	}
}

// GaussianKernel1D returns a normalized, odd length gaussian kernel covering 3 sigma on each side.
func GaussianKernel1D(sigma float64) []float64 {
	gaus := GaussianFunction1D(sigma)
	k := utils.MaxInt(3, 1+2*int(math.Ceil(3.*sigma)))
	kernel := make([]float64, k)
	for i, x := range makeRangeArray(k) {
		kernel[i] = gaus(float64(x))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// GaussianBlurFloat64 smooths a luminance matrix with an isotropic gaussian. A non-positive
// sigma returns a copy of the input.
func GaussianBlurFloat64(m *mat.Dense, sigma float64) *mat.Dense {
	if sigma <= 0 {
		return mat.DenseCopyOf(m)
	}
	kernel := GaussianKernel1D(sigma)
	return ConvolveSeparableFloat64(m, kernel, kernel)
}

// BilinearInterpolation samples m at the sub-pixel position (x, y) where x indexes columns and y
// indexes rows. Positions outside the matrix are clamped to the border.
func BilinearInterpolation(m *mat.Dense, x, y float64) float64 {
	h, w := m.Dims()
	x = math.Max(0, math.Min(x, float64(w-1)))
	y = math.Max(0, math.Min(y, float64(h-1)))
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := utils.MinInt(x0+1, w-1), utils.MinInt(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	top := (1-fx)*m.At(y0, x0) + fx*m.At(y0, x1)
	bottom := (1-fx)*m.At(y1, x0) + fx*m.At(y1, x1)
	return (1-fy)*top + fy*bottom
}
