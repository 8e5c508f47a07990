package calib

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/transform"
	"go.viam.com/camcalib/utils"
)

// SolverMethod selects the nonlinear refinement.
type SolverMethod string

const (
	// MethodLevenbergMarquardt refines with damped Gauss-Newton steps.
	MethodLevenbergMarquardt = SolverMethod("lm")
	// MethodLBFGS refines with the gonum L-BFGS minimizer.
	MethodLBFGS = SolverMethod("lbfgs")
)

const (
	defaultMaxIterations = 100
	defaultMinViews      = 3
	// Two views are the least that determine a zero skew camera matrix.
	minViewsFloor = 2
)

// SolverOptions tunes Calibrate. Zero values select the defaults.
type SolverOptions struct {
	Method            SolverMethod `json:"method"`
	MaxIterations     int          `json:"max_iterations"`
	MinViews          int          `json:"min_views"`
	FixK3             bool         `json:"fix_k3"`
	ZeroTangentDist   bool         `json:"zero_tangent_dist"`
	FixPrincipalPoint bool         `json:"fix_principal_point"`
	// InitialIntrinsics, when set, replaces the closed form estimate of the camera matrix.
	InitialIntrinsics *transform.PinholeCameraIntrinsics `json:"-"`
}

func (o SolverOptions) withDefaults() SolverOptions {
	if o.Method == "" {
		o.Method = MethodLevenbergMarquardt
	}
	if o.MaxIterations < 1 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.MinViews == 0 {
		o.MinViews = defaultMinViews
	}
	if o.MinViews < minViewsFloor {
		o.MinViews = minViewsFloor
	}
	return o
}

// Validate checks the method name.
func (o SolverOptions) Validate() error {
	switch o.Method {
	case "", MethodLevenbergMarquardt, MethodLBFGS:
		return nil
	default:
		return errors.Errorf("unknown solver method %q", o.Method)
	}
}

// Solution is the result of a calibration. Poses[i] belongs to entry i of the dataset.
type Solution struct {
	Intrinsics IntrinsicModel
	Poses      []ExtrinsicPose
	// RMS is the root mean square distance between detected and reprojected points, in pixels.
	RMS        float64
	Iterations int
}

// Calibrate estimates the camera intrinsics, distortion and one pose per view from a dataset. The
// camera matrix is initialized in closed form from the view homographies, then all parameters are
// refined jointly to minimize the reprojection error. No partial result is returned on error.
func Calibrate(ctx context.Context, ds *CalibrationDataset, opts SolverOptions, logger logging.Logger) (*Solution, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if ds.Len() < opts.MinViews {
		return nil, errors.Wrapf(ErrDegenerateGeometry, "%d views, need at least %d", ds.Len(), opts.MinViews)
	}

	homographies, err := viewHomographies(ds)
	if err != nil {
		return nil, err
	}
	im, err := initialIntrinsics(homographies, ds.ImageSize, opts)
	if err != nil {
		return nil, err
	}
	logger.Debugw("initial camera matrix", "fx", im.Fx, "fy", im.Fy, "cx", im.Cx, "cy", im.Cy)

	poses := make([]ExtrinsicPose, len(homographies))
	for i, h := range homographies {
		if poses[i], err = poseFromHomography(h, im); err != nil {
			return nil, err
		}
	}
	im.Distortion[0], im.Distortion[1] = initialRadialDistortion(ds, im, poses)

	prob := newReprojectionProblem(ds, im, poses, opts)
	var ref *refinement
	switch opts.Method {
	case MethodLBFGS:
		ref, err = lbfgsRefine(ctx, prob, prob.initial(), opts.MaxIterations, logger)
	default:
		ref, err = levenbergMarquardt(ctx, prob, prob.initial(), opts.MaxIterations, logger)
	}
	if err != nil {
		return nil, err
	}

	im, poses = prob.unpack(ref.x)
	if err := checkSolution(im, poses); err != nil {
		return nil, err
	}
	sol := &Solution{
		Intrinsics: im,
		Poses:      poses,
		RMS:        math.Sqrt(ref.cost / float64(prob.numPoints)),
		Iterations: ref.iterations,
	}
	logger.Infow("calibration solved",
		"views", ds.Len(), "rms", sol.RMS, "iterations", sol.Iterations, "method", string(opts.Method))
	return sol, nil
}

// initialIntrinsics returns the starting camera matrix, without distortion.
func initialIntrinsics(homographies []*transform.Homography, size image.Point, opts SolverOptions) (IntrinsicModel, error) {
	if guess := opts.InitialIntrinsics; guess != nil {
		if err := guess.CheckValid(); err != nil {
			return IntrinsicModel{}, err
		}
		if guess.Width != size.X || guess.Height != size.Y {
			return IntrinsicModel{}, errors.Errorf("initial intrinsics are for %dx%d images, dataset images are %dx%d",
				guess.Width, guess.Height, size.X, size.Y)
		}
		return IntrinsicModel{Fx: guess.Fx, Fy: guess.Fy, Cx: guess.Ppx, Cy: guess.Ppy}, nil
	}
	if opts.FixPrincipalPoint {
		center := r2.Point{X: float64(size.X-1) / 2, Y: float64(size.Y-1) / 2}
		return fixedCenterIntrinsics(homographies, size, center)
	}
	return zhangIntrinsics(homographies, size)
}

// checkSolution rejects models that are not physically sane.
func checkSolution(im IntrinsicModel, poses []ExtrinsicPose) error {
	values := []float64{im.Fx, im.Fy, im.Cx, im.Cy}
	values = append(values, im.Distortion[:]...)
	for _, p := range poses {
		values = append(values, p.Rotation.X, p.Rotation.Y, p.Rotation.Z,
			p.Translation.X, p.Translation.Y, p.Translation.Z)
	}
	if !utils.IsFinite(values...) {
		return NewDegenerateGeometryError("refinement diverged")
	}
	if im.Fx <= 0 || im.Fy <= 0 {
		return errors.Wrapf(ErrDegenerateGeometry, "non-positive focal length (%g, %g)", im.Fx, im.Fy)
	}
	for i, p := range poses {
		if p.Translation.Z <= 0 {
			return errors.Wrapf(ErrDegenerateGeometry, "board %d is behind the camera", i)
		}
	}
	return nil
}
