package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// RodriguesToMatrix converts an axis-angle rotation vector, whose norm is the angle in radians,
// into a 3x3 rotation matrix.
func RodriguesToMatrix(rvec r3.Vector) *mat.Dense {
	theta := rvec.Norm()
	rot := eye(3)
	if theta < 1e-12 {
		// First order expansion: R = I + [r]x
		rot.Set(0, 1, -rvec.Z)
		rot.Set(0, 2, rvec.Y)
		rot.Set(1, 0, rvec.Z)
		rot.Set(1, 2, -rvec.X)
		rot.Set(2, 0, -rvec.Y)
		rot.Set(2, 1, rvec.X)
		return rot
	}

	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	rot.Set(0, 0, c+k.X*k.X*v)
	rot.Set(0, 1, k.X*k.Y*v-k.Z*s)
	rot.Set(0, 2, k.X*k.Z*v+k.Y*s)
	rot.Set(1, 0, k.Y*k.X*v+k.Z*s)
	rot.Set(1, 1, c+k.Y*k.Y*v)
	rot.Set(1, 2, k.Y*k.Z*v-k.X*s)
	rot.Set(2, 0, k.Z*k.X*v-k.Y*s)
	rot.Set(2, 1, k.Z*k.Y*v+k.X*s)
	rot.Set(2, 2, c+k.Z*k.Z*v)
	return rot
}

// MatrixToRodrigues converts a 3x3 rotation matrix to an axis-angle rotation vector with an
// angle in [0, pi].
func MatrixToRodrigues(rot mat.Matrix) r3.Vector {
	trace := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	cosTheta := math.Max(-1, math.Min(1, (trace-1)/2))

	axis := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	sinTheta := axis.Norm() / 2
	// acos loses half the precision near 0 and pi, atan2 does not.
	theta := math.Atan2(sinTheta, cosTheta)

	switch {
	case sinTheta < 1e-12 && cosTheta > 0:
		return r3.Vector{}
	case sinTheta < 1e-5 && cosTheta < 0:
		// Near pi the antisymmetric part vanishes. Recover the axis from R = 2kk^T - I.
		k := r3.Vector{
			X: math.Sqrt(math.Max(0, (rot.At(0, 0)+1)/2)),
			Y: math.Sqrt(math.Max(0, (rot.At(1, 1)+1)/2)),
			Z: math.Sqrt(math.Max(0, (rot.At(2, 2)+1)/2)),
		}
		// Fix the signs relative to the largest component.
		switch {
		case k.X >= k.Y && k.X >= k.Z:
			k.Y = math.Copysign(k.Y, rot.At(0, 1)+rot.At(1, 0))
			k.Z = math.Copysign(k.Z, rot.At(0, 2)+rot.At(2, 0))
		case k.Y >= k.Z:
			k.X = math.Copysign(k.X, rot.At(0, 1)+rot.At(1, 0))
			k.Z = math.Copysign(k.Z, rot.At(1, 2)+rot.At(2, 1))
		default:
			k.X = math.Copysign(k.X, rot.At(0, 2)+rot.At(2, 0))
			k.Y = math.Copysign(k.Y, rot.At(1, 2)+rot.At(2, 1))
		}
		// Short of pi the antisymmetric part still carries the sign of the axis.
		if k.Dot(axis) < 0 {
			k = k.Mul(-1)
		}
		return k.Normalize().Mul(theta)
	}
	return axis.Mul(theta / (2 * sinTheta))
}

// RotatePoint applies the axis-angle rotation rvec to p without building a matrix.
func RotatePoint(rvec, p r3.Vector) r3.Vector {
	theta := rvec.Norm()
	if theta < 1e-12 {
		return p.Add(rvec.Cross(p))
	}
	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	// Rodrigues: p cos + (k x p) sin + k (k.p)(1 - cos)
	return p.Mul(c).Add(k.Cross(p).Mul(s)).Add(k.Mul(k.Dot(p) * (1 - c)))
}

// NearestRotation returns the rotation matrix closest to m in the Frobenius norm. The input
// is typically a noisy rotation assembled from homography columns.
func NearestRotation(m mat.Matrix) (*mat.Dense, bool) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot := mat.NewDense(3, 3, nil)
	rot.Mul(&u, v.T())
	if mat.Det(rot) < 0 {
		// Flip the last singular direction to stay in SO(3).
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rot.Mul(&u, v.T())
	}
	return rot, true
}

// eye creates an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
