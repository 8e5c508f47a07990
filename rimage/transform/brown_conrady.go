package transform

import (
	"math"

	"github.com/pkg/errors"
)

// BrownConrady is a struct for some terms of a modified Brown-Conrady model of distortion.
// The forward model, on normalized image coordinates, is:
//
//	r² = x² + y²
//	x_d = x * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y * (1 + k1*r² + k2*r⁴ + k3*r⁶) + p1*(r² + 2*y²) + 2*p2*x*y
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats that will be passed into the struct in order:
// rk1, rk2, rk3, tp1, tp2. Missing values are zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	params := make([]float64, 5)
	copy(params, inp)
	return &BrownConrady{params[0], params[1], params[2], params[3], params[4]}, nil
}

// NewBrownConradyFromCoefficients builds the model from a coefficient vector in the
// (k1, k2, p1, p2, k3) order used by calibration results.
func NewBrownConradyFromCoefficients(coeffs [5]float64) *BrownConrady {
	return &BrownConrady{
		RadialK1:     coeffs[0],
		RadialK2:     coeffs[1],
		TangentialP1: coeffs[2],
		TangentialP2: coeffs[3],
		RadialK3:     coeffs[4],
	}
}

// Coefficients returns the parameters in (k1, k2, p1, p2, k3) order.
func (bc *BrownConrady) Coefficients() [5]float64 {
	if bc == nil {
		return [5]float64{}
	}
	return [5]float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("BrownConrady parameters must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the distortion parameters in a slice in the order rk1, rk2, rk3, tp1, tp2.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Transform distorts the normalized, undistorted point (x, y).
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radDist := 1 + r2*(bc.RadialK1+r2*(bc.RadialK2+r2*bc.RadialK3))
	xd := x*radDist + 2*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2*x*x)
	yd := y*radDist + bc.TangentialP1*(r2+2*y*y) + 2*bc.TangentialP2*x*y
	return xd, yd
}

// Undistort inverts Transform with Newton-Raphson iterations, starting from the distorted
// point itself.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}
	const maxIterations = 20
	const tolerance = 1e-12

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radDist := 1 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2

		xdEst, ydEst := bc.Transform(xu, yu)
		errX, errY := xdEst-xd, ydEst-yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		dRad := 2 * (bc.RadialK1 + 2*bc.RadialK2*r2 + 3*bc.RadialK3*r4)
		dxdDxu := radDist + xu*xu*dRad + 2*bc.TangentialP1*yu + 6*bc.TangentialP2*xu
		dxdDyu := xu*yu*dRad + 2*bc.TangentialP1*xu + 2*bc.TangentialP2*yu
		dydDxu := xu*yu*dRad + 2*bc.TangentialP1*xu + 2*bc.TangentialP2*yu
		dydDyu := radDist + yu*yu*dRad + 6*bc.TangentialP1*yu + 2*bc.TangentialP2*xu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
