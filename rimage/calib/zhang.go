package calib

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage/transform"
)

// singularRatioMin is the smallest accepted ratio between the second smallest and the largest
// singular value of the homography constraint system.
const singularRatioMin = 1e-10

// viewHomographies estimates the homography from the board plane to the image of every view.
func viewHomographies(ds *CalibrationDataset) ([]*transform.Homography, error) {
	homographies := make([]*transform.Homography, ds.Len())
	for i := range ds.ImagePoints {
		plane := make([]r2.Point, len(ds.ObjectPoints[i]))
		for j, p := range ds.ObjectPoints[i] {
			plane[j] = r2.Point{X: p.X, Y: p.Y}
		}
		h, err := transform.EstimateHomography(plane, ds.ImagePoints[i])
		if err != nil {
			return nil, errors.Wrapf(ErrDegenerateGeometry, "view %d: %v", i, err)
		}
		homographies[i] = h
	}
	return homographies, nil
}

// conditioning returns the scale and offset that map pixel coordinates to roughly [-1, 1].
func conditioning(imageSize image.Point) (float64, r2.Point) {
	s := 2 / float64(imageSize.X+imageSize.Y)
	return s, r2.Point{X: float64(imageSize.X) / 2, Y: float64(imageSize.Y) / 2}
}

// conditionHomography returns N*H where N maps pixels p to s*(p - offset).
func conditionHomography(h *transform.Homography, s float64, offset r2.Point) [3][3]float64 {
	var out [3][3]float64
	for c := 0; c < 3; c++ {
		out[0][c] = s * (h.At(0, c) - offset.X*h.At(2, c))
		out[1][c] = s * (h.At(1, c) - offset.Y*h.At(2, c))
		out[2][c] = h.At(2, c)
	}
	return out
}

// zhangRow returns v_ij, the coefficients of h_i^T B h_j in b = (B11, B12, B22, B13, B23, B33),
// where h_i is column i of h.
func zhangRow(h [3][3]float64, i, j int) []float64 {
	return []float64{
		h[0][i] * h[0][j],
		h[0][i]*h[1][j] + h[1][i]*h[0][j],
		h[1][i] * h[1][j],
		h[2][i]*h[0][j] + h[0][i]*h[2][j],
		h[2][i]*h[1][j] + h[1][i]*h[2][j],
		h[2][i] * h[2][j],
	}
}

// unitRow scales a constraint row to unit length so that every view weighs the same.
func unitRow(row []float64) []float64 {
	if n := floats.Norm(row, 2); n > 0 {
		floats.Scale(1/n, row)
	}
	return row
}

// nullVector returns the right singular vector of a for its smallest singular value, along with
// all the singular values.
func nullVector(a *mat.Dense) ([]float64, []float64, bool) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	_, n := a.Dims()
	return mat.Col(nil, n-1, &v), svd.Values(nil), true
}

// zhangIntrinsics recovers fx, fy, cx and cy, with zero skew, from the absolute conic constraints
// of at least two homographies.
func zhangIntrinsics(homographies []*transform.Homography, imageSize image.Point) (IntrinsicModel, error) {
	s, offset := conditioning(imageSize)
	rows := make([]float64, 0, (2*len(homographies)+1)*6)
	for _, h := range homographies {
		hn := conditionHomography(h, s, offset)
		v11 := zhangRow(hn, 0, 0)
		v22 := zhangRow(hn, 1, 1)
		diff := make([]float64, len(v11))
		floats.SubTo(diff, v11, v22)
		rows = append(rows, unitRow(zhangRow(hn, 0, 1))...)
		rows = append(rows, unitRow(diff)...)
	}
	// Zero skew: B12 = 0.
	rows = append(rows, 0, 1, 0, 0, 0, 0)
	v := mat.NewDense(len(rows)/6, 6, rows)

	b, values, ok := nullVector(v)
	if !ok {
		return IntrinsicModel{}, NewDegenerateGeometryError("cannot decompose the homography constraints")
	}
	if len(values) < 5 || values[4] < singularRatioMin*values[0] {
		return IntrinsicModel{}, NewDegenerateGeometryError("views do not constrain the camera matrix")
	}
	if b[0] < 0 {
		for i := range b {
			b[i] = -b[i]
		}
	}
	b11, b12, b22, b13, b23, b33 := b[0], b[1], b[2], b[3], b[4], b[5]

	den := b11*b22 - b12*b12
	if b11 <= 0 || den <= 0 {
		return IntrinsicModel{}, NewDegenerateGeometryError("image of the absolute conic is not positive definite")
	}
	v0 := (b12*b13 - b11*b23) / den
	lambda := b33 - (b13*b13+v0*(b12*b13-b11*b23))/b11
	if lambda/b11 <= 0 {
		return IntrinsicModel{}, NewDegenerateGeometryError("negative focal length estimate")
	}
	alpha := math.Sqrt(lambda / b11)
	beta := math.Sqrt(lambda * b11 / den)
	u0 := -b13 * alpha * alpha / lambda

	return IntrinsicModel{
		Fx: alpha / s,
		Fy: beta / s,
		Cx: u0/s + offset.X,
		Cy: v0/s + offset.Y,
	}, nil
}

// fixedCenterIntrinsics recovers fx and fy assuming the principal point is at center.
func fixedCenterIntrinsics(homographies []*transform.Homography, imageSize image.Point, center r2.Point) (IntrinsicModel, error) {
	s, _ := conditioning(imageSize)
	rows := make([]float64, 0, 2*len(homographies)*3)
	for _, h := range homographies {
		hn := conditionHomography(h, s, center)
		// With the principal point at the origin, B is diagonal: b = (B11, B22, B33).
		rows = append(rows, unitRow([]float64{
			hn[0][0] * hn[0][1], hn[1][0] * hn[1][1], hn[2][0] * hn[2][1],
		})...)
		rows = append(rows, unitRow([]float64{
			hn[0][0]*hn[0][0] - hn[0][1]*hn[0][1],
			hn[1][0]*hn[1][0] - hn[1][1]*hn[1][1],
			hn[2][0]*hn[2][0] - hn[2][1]*hn[2][1],
		})...)
	}
	v := mat.NewDense(len(rows)/3, 3, rows)
	b, values, ok := nullVector(v)
	if !ok {
		return IntrinsicModel{}, NewDegenerateGeometryError("cannot decompose the homography constraints")
	}
	if len(values) < 2 || values[1] < singularRatioMin*values[0] {
		return IntrinsicModel{}, NewDegenerateGeometryError("views do not constrain the focal lengths")
	}
	if b[2] < 0 {
		for i := range b {
			b[i] = -b[i]
		}
	}
	if b[0] <= 0 || b[1] <= 0 || b[2] <= 0 {
		return IntrinsicModel{}, NewDegenerateGeometryError("image of the absolute conic is not positive definite")
	}
	return IntrinsicModel{
		Fx: math.Sqrt(b[2]/b[0]) / s,
		Fy: math.Sqrt(b[2]/b[1]) / s,
		Cx: center.X,
		Cy: center.Y,
	}, nil
}

// poseFromHomography decomposes H = K [r1 r2 t] into a pose in front of the camera.
func poseFromHomography(h *transform.Homography, im IntrinsicModel) (ExtrinsicPose, error) {
	// K^-1 applied to a column of h.
	column := func(c int) r3.Vector {
		y := (h.At(1, c) - im.Cy*h.At(2, c)) / im.Fy
		x := (h.At(0, c) - im.Cx*h.At(2, c)) / im.Fx
		return r3.Vector{X: x, Y: y, Z: h.At(2, c)}
	}
	h1, h2, h3 := column(0), column(1), column(2)
	norm := h1.Norm()
	if norm == 0 {
		return ExtrinsicPose{}, NewDegenerateGeometryError("homography has a null column")
	}
	lambda := 1 / norm
	r1, r2, t := h1.Mul(lambda), h2.Mul(lambda), h3.Mul(lambda)
	if t.Z < 0 {
		r1, r2, t = r1.Mul(-1), r2.Mul(-1), t.Mul(-1)
	}
	r3v := r1.Cross(r2)
	m := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	rot, ok := transform.NearestRotation(m)
	if !ok {
		return ExtrinsicPose{}, NewDegenerateGeometryError("cannot orthonormalize rotation")
	}
	return ExtrinsicPose{Rotation: transform.MatrixToRodrigues(rot), Translation: t}, nil
}

// initialRadialDistortion fits k1 and k2 by linear least squares to the residuals of the
// distortion free model. It returns zeros when the system cannot be solved.
func initialRadialDistortion(ds *CalibrationDataset, im IntrinsicModel, poses []ExtrinsicPose) (float64, float64) {
	var rows, rhs []float64
	intr := im.PinholeIntrinsics(ds.ImageSize)
	for i, pose := range poses {
		ideal := transform.ProjectPoints(ds.ObjectPoints[i], pose.Rotation, pose.Translation, intr, nil)
		for j, obj := range ds.ObjectPoints[i] {
			cam := transform.RotatePoint(pose.Rotation, obj).Add(pose.Translation)
			x, y := cam.X/cam.Z, cam.Y/cam.Z
			rr := x*x + y*y
			du, dv := ideal[j].X-im.Cx, ideal[j].Y-im.Cy
			rows = append(rows, du*rr, du*rr*rr, dv*rr, dv*rr*rr)
			rhs = append(rhs, ds.ImagePoints[i][j].X-ideal[j].X, ds.ImagePoints[i][j].Y-ideal[j].Y)
		}
	}
	if len(rhs) < 2 {
		return 0, 0
	}
	a := mat.NewDense(len(rhs), 2, rows)
	var k mat.Dense
	if err := k.Solve(a, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return 0, 0
	}
	k1, k2 := k.At(0, 0), k.At(1, 0)
	if math.IsNaN(k1) || math.IsInf(k1, 0) || math.IsNaN(k2) || math.IsInf(k2, 0) {
		return 0, 0
	}
	return k1, k2
}
