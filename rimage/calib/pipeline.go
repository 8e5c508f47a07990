package calib

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/transform"
)

// Collaborators are the services a calibration run depends on. Loader, Refiner and Sink are
// optional; Report receives the console report when set.
type Collaborators struct {
	Loader   ImageLoader
	Detector CornerDetector
	Refiner  SubpixRefiner
	Sink     CornerSink
	Report   io.Writer
}

// Run calibrates the camera from the images listed in cfg.ImageList: it collects the corner
// correspondences, solves the camera model, evaluates the reprojection error and, if
// cfg.Output is set, writes the result there.
func Run(ctx context.Context, cfg *Config, collab Collaborators, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	paths, err := ReadImageList(cfg.ImageList)
	if err != nil {
		return nil, err
	}
	logger.Infow("calibrating", "images", len(paths), "rows", cfg.BoardSize.Rows, "cols", cfg.BoardSize.Cols)

	sink := collab.Sink
	if sink == nil && cfg.DebugDir != "" {
		overlay, err := NewOverlaySink(cfg.DebugDir, logger.Sublogger("overlay"))
		if err != nil {
			return nil, err
		}
		sink = overlay
	}
	builder := NewBuilder(cfg.Board(), BuilderOptions{
		Loader:       collab.Loader,
		Detector:     collab.Detector,
		Refiner:      collab.Refiner,
		Sink:         sink,
		SubpixWindow: cfg.Window(),
		Workers:      cfg.Workers,
	}, logger.Sublogger("builder"))
	ds, err := builder.Build(ctx, paths)
	if err != nil {
		return nil, err
	}

	opts := cfg.Solver.SolverOptions
	if cfg.Solver.IntrinsicGuess != "" {
		guess, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(cfg.Solver.IntrinsicGuess)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read initial intrinsics")
		}
		opts.InitialIntrinsics = guess
	}
	sol, err := Calibrate(ctx, ds, opts, logger.Sublogger("solver"))
	if err != nil {
		return nil, err
	}

	report, err := Evaluate(ds, sol.Intrinsics, sol.Poses)
	if err != nil {
		return nil, err
	}
	if collab.Report != nil {
		if err := WriteReport(collab.Report, report); err != nil {
			return nil, err
		}
	}

	result := NewResult(ds, sol, report)
	if cfg.Output != "" {
		if err := result.WriteJSON(cfg.Output); err != nil {
			return nil, err
		}
		logger.Infow("wrote calibration", "path", cfg.Output)
	}
	return result, nil
}
