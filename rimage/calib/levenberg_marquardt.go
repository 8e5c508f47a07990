package calib

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/logging"
)

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e32
	lmStepTolerance  = 1e-12
	lmCostTolerance  = 1e-14
	lmGradTolerance  = 1e-12
	lmMinDiagonal    = 1e-12
)

// refinement is the outcome of a nonlinear refinement.
type refinement struct {
	x          []float64
	cost       float64
	iterations int
}

// levenbergMarquardt minimizes the squared residuals of prob starting from x0. The damping term is
// scaled by the diagonal of the normal equations.
func levenbergMarquardt(
	ctx context.Context,
	prob *reprojectionProblem,
	x0 []float64,
	maxIterations int,
	logger logging.Logger,
) (*refinement, error) {
	n, m := len(x0), prob.numResiduals()
	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	prob.residuals(r, x)
	cost := prob.cost(r)

	jac := mat.NewDense(m, n, nil)
	var normal mat.SymDense
	grad := mat.NewVecDense(n, nil)
	linearize := func() {
		prob.jacobian(jac, x)
		normal.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))
	}
	linearize()

	damping, growth := lmInitialDamping, 2.
	augmented := mat.NewSymDense(n, nil)
	negGrad := mat.NewVecDense(n, nil)
	step := mat.NewVecDense(n, nil)
	xNew := make([]float64, n)
	rNew := make([]float64, m)
	var chol mat.Cholesky

	iter := 0
	for iter < maxIterations {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if mat.Norm(grad, math.Inf(1)) <= lmGradTolerance || cost == 0 {
			break
		}
		iter++

		augmented.CopySym(&normal)
		for i := 0; i < n; i++ {
			d := math.Max(normal.At(i, i), lmMinDiagonal)
			augmented.SetSym(i, i, normal.At(i, i)+damping*d)
		}
		negGrad.ScaleVec(-1, grad)
		if ok := chol.Factorize(augmented); !ok {
			damping *= growth
			growth *= 2
			if damping > lmMaxDamping {
				break
			}
			continue
		}
		if err := chol.SolveVecTo(step, negGrad); err != nil {
			damping *= growth
			growth *= 2
			if damping > lmMaxDamping {
				break
			}
			continue
		}

		stepNorm := mat.Norm(step, 2)
		if stepNorm <= lmStepTolerance*(floats.Norm(x, 2)+lmStepTolerance) {
			break
		}
		floats.AddTo(xNew, x, step.RawVector().Data)
		prob.residuals(rNew, xNew)
		costNew := prob.cost(rNew)

		// Predicted decrease of the linear model: step^T (damping*D*step - grad).
		var predicted float64
		for i := 0; i < n; i++ {
			d := math.Max(normal.At(i, i), lmMinDiagonal)
			predicted += step.AtVec(i) * (damping*d*step.AtVec(i) - grad.AtVec(i))
		}
		rho := (cost - costNew) / predicted
		if costNew < cost && predicted > 0 && !math.IsNaN(rho) {
			decrease := cost - costNew
			copy(x, xNew)
			copy(r, rNew)
			cost = costNew
			linearize()
			damping *= math.Max(1./3, 1-math.Pow(2*rho-1, 3))
			growth = 2
			logger.Debugw("levenberg-marquardt step accepted",
				"iteration", iter, "rms", math.Sqrt(cost/float64(prob.numPoints)), "damping", damping)
			if decrease <= lmCostTolerance*cost {
				break
			}
			continue
		}
		damping *= growth
		growth *= 2
		if damping > lmMaxDamping {
			break
		}
	}
	return &refinement{x: x, cost: cost, iterations: iter}, nil
}
