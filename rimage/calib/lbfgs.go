package calib

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/camcalib/logging"
)

// lbfgsIterationFactor converts the iteration budget of Levenberg-Marquardt into L-BFGS major
// iterations, which make much less progress each.
const lbfgsIterationFactor = 20

// lbfgsRefine minimizes the squared residuals of prob with L-BFGS. The parameters are divided
// by their initial magnitude so that focal lengths, translations and distortion coefficients
// move on comparable scales.
func lbfgsRefine(
	ctx context.Context,
	prob *reprojectionProblem,
	x0 []float64,
	maxIterations int,
	logger logging.Logger,
) (*refinement, error) {
	n, m := len(x0), prob.numResiduals()
	scale := make([]float64, n)
	z0 := make([]float64, n)
	for i, v := range x0 {
		scale[i] = math.Max(math.Abs(v), 1)
		z0[i] = v / scale[i]
	}
	toX := func(z []float64) []float64 {
		x := make([]float64, n)
		for i := range z {
			x[i] = z[i] * scale[i]
		}
		return x
	}

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			r := make([]float64, m)
			prob.residuals(r, toX(z))
			return prob.cost(r)
		},
		Grad: func(grad, z []float64) {
			x := toX(z)
			r := make([]float64, m)
			prob.residuals(r, x)
			jac := mat.NewDense(m, n, nil)
			prob.jacobian(jac, x)
			g := mat.NewVecDense(n, grad)
			g.MulVec(jac.T(), mat.NewVecDense(m, r))
			for i := range grad {
				grad[i] *= 2 * scale[i]
			}
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIterations * lbfgsIterationFactor,
		GradientThreshold: 1e-12,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-16,
			Relative:   1e-14,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(problem, z0, settings, &optimize.LBFGS{})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.Wrap(err, "l-bfgs failed")
	}
	if err != nil {
		// Line search failures near the minimum still leave a usable location.
		logger.Debugw("l-bfgs stopped early", "status", result.Status.String(), "error", err)
	}
	logger.Debugw("l-bfgs finished", "status", result.Status.String(),
		"iterations", result.Stats.MajorIterations, "rms", math.Sqrt(result.F/float64(prob.numPoints)))
	return &refinement{x: toX(result.X), cost: result.F, iterations: result.Stats.MajorIterations}, nil
}
