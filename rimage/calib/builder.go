package calib

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage"
)

// DefaultSubpixWindow is the full size of the sub-pixel search window.
var DefaultSubpixWindow = image.Pt(11, 11)

// BuilderOptions holds the collaborators of a Builder. Loader defaults to reading files from
// disk. Refiner and Sink are optional.
type BuilderOptions struct {
	Loader       ImageLoader
	Detector     CornerDetector
	Refiner      SubpixRefiner
	Sink         CornerSink
	SubpixWindow image.Point
	// Workers is the number of images processed concurrently. Values below 2 process the images
	// one after the other.
	Workers int
}

// Builder collects corner correspondences from calibration images.
type Builder struct {
	board  BoardSpec
	opts   BuilderOptions
	logger logging.Logger
}

// NewBuilder returns a builder for board.
func NewBuilder(board BoardSpec, opts BuilderOptions, logger logging.Logger) *Builder {
	if opts.Loader == nil {
		opts.Loader = rimage.FileLoader{}
	}
	if opts.SubpixWindow == (image.Point{}) {
		opts.SubpixWindow = DefaultSubpixWindow
	}
	return &Builder{board: board, opts: opts, logger: logger}
}

// detection is the outcome of processing one image.
type detection struct {
	path    string
	size    image.Point
	corners []r2.Point
	skipErr error
}

// Build processes every path in order. Images that cannot be loaded or in which the board is not
// found are logged and skipped. An image whose size differs from the previous ones stops the
// build.
func (b *Builder) Build(ctx context.Context, paths []string) (*CalibrationDataset, error) {
	if err := b.board.Validate(); err != nil {
		return nil, err
	}
	if b.opts.Detector == nil {
		return nil, errors.New("builder needs a corner detector")
	}

	ds := NewCalibrationDataset(b.board)
	if b.opts.Workers < 2 {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			det, err := b.process(i, path)
			if err != nil {
				return nil, err
			}
			if err := b.merge(ds, det); err != nil {
				return nil, err
			}
		}
	} else {
		detections := make([]detection, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.opts.Workers)
		for i, path := range paths {
			i, path := i, path
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				det, err := b.process(i, path)
				if err != nil {
					return err
				}
				detections[i] = det
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, det := range detections {
			if err := b.merge(ds, det); err != nil {
				return nil, err
			}
		}
	}

	b.logger.Infow("collected corner correspondences", "images", ds.Len(), "skipped", len(ds.Skipped))
	if err := ds.Validate(); err != nil {
		// Wrapped so callers see one error, not a list of them.
		return nil, errors.Wrap(multierr.Append(err, ds.SkippedError()), "cannot build calibration dataset")
	}
	return ds, nil
}

// process loads one image, detects and refines its corners. Only configuration problems are
// returned as errors; per-image failures are reported through skipErr.
func (b *Builder) process(index int, path string) (detection, error) {
	det := detection{path: path}
	img, err := b.opts.Loader.Load(path)
	if err != nil {
		var loadErr *rimage.ImageLoadError
		if !errors.As(err, &loadErr) {
			err = &rimage.ImageLoadError{Path: path, Err: err}
		}
		b.logger.Warnw("cannot load image", "path", path, "error", err)
		det.skipErr = err
		return det, nil
	}
	det.size = img.Bounds().Size()

	corners, err := b.opts.Detector.FindCorners(img, b.board.Rows, b.board.Cols)
	if err == nil && len(corners) != b.board.NumCorners() {
		err = errors.Errorf("detector returned %d corners, expected %d", len(corners), b.board.NumCorners())
	}
	if err != nil {
		b.logger.Warnw("chessboard cannot be found", "path", path)
		b.logger.Debugw("corner detection error", "path", path, "error", err)
		det.skipErr = &CornerDetectionError{Path: path, Err: err}
		return det, nil
	}

	if b.opts.Refiner != nil {
		refined, err := b.opts.Refiner.RefineCorners(rimage.MakeGray(img), corners, b.opts.SubpixWindow)
		// Refiners only fail on their settings, which every other image shares, so the batch stops.
		if err != nil {
			return det, errors.Wrapf(err, "cannot refine corners of %s", path)
		}
		if len(refined) != len(corners) {
			return det, errors.Errorf("refiner returned %d corners for %d inputs", len(refined), len(corners))
		}
		corners = refined
	}
	det.corners = corners

	if b.opts.Sink != nil {
		if err := b.opts.Sink.ShowCorners(index, path, img, b.board, corners); err != nil {
			b.logger.Warnw("cannot show corners", "path", path, "error", err)
		}
	}
	return det, nil
}

func (b *Builder) merge(ds *CalibrationDataset, det detection) error {
	if det.skipErr != nil {
		ds.Skip(det.path, det.skipErr)
		return nil
	}
	return ds.Add(det.path, det.size, det.corners)
}
