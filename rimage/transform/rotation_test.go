package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestRodriguesRoundTrip(t *testing.T) {
	for _, rvec := range []r3.Vector{
		{},
		{X: 0.1},
		{X: 0.2, Y: -0.3, Z: 0.05},
		{X: -1.2, Y: 0.4, Z: 2.0},
		{Z: math.Pi / 2},
		{X: math.Pi - 1e-3},
	} {
		rot := RodriguesToMatrix(rvec)

		// Orthonormal with a positive determinant.
		var rtr mat.Dense
		rtr.Mul(rot.T(), rot)
		test.That(t, mat.EqualApprox(&rtr, eye(3), 1e-12), test.ShouldBeTrue)
		test.That(t, mat.Det(rot), test.ShouldAlmostEqual, 1., 1e-12)

		back := MatrixToRodrigues(rot)
		test.That(t, back.X, test.ShouldAlmostEqual, rvec.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, rvec.Y, 1e-9)
		test.That(t, back.Z, test.ShouldAlmostEqual, rvec.Z, 1e-9)

		p := r3.Vector{X: 1, Y: -2, Z: 3}
		rotated := RotatePoint(rvec, p)
		test.That(t, rotated.X, test.ShouldAlmostEqual, rot.At(0, 0)*p.X+rot.At(0, 1)*p.Y+rot.At(0, 2)*p.Z, 1e-12)
		test.That(t, rotated.Y, test.ShouldAlmostEqual, rot.At(1, 0)*p.X+rot.At(1, 1)*p.Y+rot.At(1, 2)*p.Z, 1e-12)
		test.That(t, rotated.Z, test.ShouldAlmostEqual, rot.At(2, 0)*p.X+rot.At(2, 1)*p.Y+rot.At(2, 2)*p.Z, 1e-12)
	}
}

func TestMatrixToRodriguesHalfTurn(t *testing.T) {
	axis := r3.Vector{X: 1, Y: 2, Z: -2}.Normalize()
	rot := RodriguesToMatrix(axis.Mul(math.Pi))
	back := MatrixToRodrigues(rot)
	test.That(t, back.Norm(), test.ShouldAlmostEqual, math.Pi, 1e-9)
	// The axis is only defined up to sign at pi.
	test.That(t, math.Abs(back.Normalize().Dot(axis)), test.ShouldAlmostEqual, 1., 1e-9)
	test.That(t, mat.EqualApprox(RodriguesToMatrix(back), rot, 1e-9), test.ShouldBeTrue)
}

func TestMatrixToRodriguesAngleRange(t *testing.T) {
	axis := r3.Vector{X: -2, Y: 1, Z: 0.5}.Normalize()
	for _, angle := range []float64{1e-7, 0.5, math.Pi / 2, math.Pi - 1e-3, math.Pi - 1e-7} {
		back := MatrixToRodrigues(RodriguesToMatrix(axis.Mul(angle)))
		test.That(t, back.Norm(), test.ShouldAlmostEqual, angle, 1e-12)
		test.That(t, back.Normalize().Dot(axis), test.ShouldAlmostEqual, 1., 1e-9)
	}
}

func TestNearestRotation(t *testing.T) {
	rot := RodriguesToMatrix(r3.Vector{X: 0.3, Y: 0.2, Z: -0.1})
	noisy := mat.DenseCopyOf(rot)
	noisy.Set(0, 0, noisy.At(0, 0)+0.01)
	noisy.Scale(1.3, noisy)

	fixed, ok := NearestRotation(noisy)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mat.Det(fixed), test.ShouldAlmostEqual, 1., 1e-12)
	test.That(t, mat.EqualApprox(fixed, rot, 1e-2), test.ShouldBeTrue)
}
