package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateHomography is returned when the point correspondences cannot determine a
// non-singular homography, e.g. when the points are collinear.
var ErrDegenerateHomography = errors.New("point correspondences do not determine a homography")

// rankTolerance is the smallest accepted ratio between singular values of the normalized
// problems below.
const rankTolerance = 1e-9

// Homography is a 3x3 matrix (represented as a 2D array) used to transform a plane from the perspective of a 2D
// camera to the perspective of another 2D camera. Indices are [row][column].
type Homography [3][3]float64

// At returns the element at row, col.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Apply maps a point through the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Mat returns the homography as a gonum matrix.
func (h *Homography) Mat() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, h[i][j])
		}
	}
	return m
}

// NewHomographyFromMat copies a 3x3 matrix into a Homography, scaled so that the bottom-right
// element is one when it is not zero.
func NewHomographyFromMat(m mat.Matrix) *Homography {
	var h Homography
	scale := 1.
	if s := m.At(2, 2); math.Abs(s) > 1e-15 {
		scale = 1 / s
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = m.At(i, j) * scale
		}
	}
	return &h
}

// EstimateHomography computes the homography mapping src onto dst with the normalized direct
// linear transform (Multiple View Geometry, Alg 4.2). At least four correspondences are needed.
// ErrDegenerateHomography is returned if the points do not constrain the solution or if the
// solution is singular.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("need the same number of points, got %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 correspondences to estimate a homography, got %d", len(src))
	}
	srcNorm, srcT, ok := normalizePoints(src)
	if !ok {
		return nil, errors.Wrap(ErrDegenerateHomography, "source points are coincident")
	}
	dstNorm, dstT, ok := normalizePoints(dst)
	if !ok {
		return nil, errors.Wrap(ErrDegenerateHomography, "destination points are coincident")
	}

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range srcNorm {
		x, y := srcNorm[i].X, srcNorm[i].Y
		u, v := dstNorm[i].X, dstNorm[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	kind := mat.SVDThin
	if 2*len(src) < 9 {
		kind = mat.SVDFull
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, kind); !ok {
		return nil, errors.New("homography SVD did not converge")
	}
	values := svd.Values(nil)
	// The 8 constraints spanning the solution must all be active.
	if len(values) >= 8 && values[7] < rankTolerance*values[0] {
		return nil, errors.Wrap(ErrDegenerateHomography, "correspondences are rank deficient")
	}
	var v mat.Dense
	svd.VTo(&v)
	hNorm := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hNorm.Set(i/3, i%3, v.At(i, 8))
	}

	var hs mat.SVD
	if ok := hs.Factorize(hNorm, mat.SVDNone); !ok {
		return nil, errors.New("homography SVD did not converge")
	}
	if sv := hs.Values(nil); sv[2] < rankTolerance*sv[0] {
		return nil, errors.Wrap(ErrDegenerateHomography, "homography is singular")
	}

	// H = T_dst^-1 * H_norm * T_src
	var dstTInv, tmp, h mat.Dense
	if err := dstTInv.Inverse(dstT); err != nil {
		return nil, errors.Wrap(err, "cannot invert normalization")
	}
	tmp.Mul(&dstTInv, hNorm)
	h.Mul(&tmp, srcT)
	if math.Abs(h.At(2, 2)) < 1e-15 {
		return nil, errors.Wrap(ErrDegenerateHomography, "homography maps the origin to infinity")
	}
	return NewHomographyFromMat(&h), nil
}

// normalizePoints translates the points to their centroid and scales them so that their mean
// distance to the origin is sqrt(2), as described in Multiple View Geometry, Alg 4.2. It
// returns false if every point is at the centroid.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, bool) {
	nPoints := float64(len(pts))
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1 / nPoints)

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / nPoints
	}
	if d < 1e-12 {
		return nil, nil, false
	}
	scale := math.Sqrt2 / d
	transform := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = pt.Sub(mu).Mul(scale)
	}
	return out, transform, true
}
