// Package chessboard finds the interior corners of a checkerboard calibration target.
package chessboard

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage"
)

// ErrNotFound is returned when an image does not show the whole board.
var ErrNotFound = errors.New("chessboard cannot be found")

// DetectionConfiguration stores the parameters necessary for chessboard detection in an image.
type DetectionConfiguration struct {
	Saddle SaddleConfiguration `json:"saddle"`
	Grid   GridConfiguration   `json:"grid"`
	// RelativeScoreMin is the smallest accepted ratio between the weakest kept saddle and the
	// median kept saddle. Corners on the outer edge of the board score around a quarter of
	// interior ones.
	RelativeScoreMin float64 `json:"relative-score-min"`
}

// DefaultDetectionConf stores the default detection parameters.
var DefaultDetectionConf = DetectionConfiguration{
	Saddle:           DefaultSaddleConf,
	Grid:             DefaultGridConf,
	RelativeScoreMin: 0.4,
}

// Detector finds chessboard corners from saddle points of the image luminance.
type Detector struct {
	conf   DetectionConfiguration
	logger logging.Logger
}

// NewDetector returns a detector using the given configuration.
func NewDetector(conf DetectionConfiguration, logger logging.Logger) *Detector {
	return &Detector{conf: conf, logger: logger}
}

// FindCorners returns the rows*cols interior corners of the board in raster order, or an error
// wrapping ErrNotFound.
func (d *Detector) FindCorners(img image.Image, rows, cols int) ([]r2.Point, error) {
	grid, err := FindChessboard(img, rows, cols, d.conf)
	if err != nil {
		d.logger.Debugw("chessboard detection failed", "rows", rows, "cols", cols, "error", err)
		return nil, err
	}
	return grid.Corners, nil
}

// FindChessboard detects a rows x cols grid of interior corners in img.
func FindChessboard(img image.Image, rows, cols int, cfg DetectionConfiguration) (*ChessGrid, error) {
	if rows < 2 || cols < 2 {
		return nil, errors.Errorf("board must have at least 2x2 interior corners, got %dx%d", rows, cols)
	}
	lum := rimage.GrayToFloat64(rimage.MakeGray(img))
	saddles, err := GetSaddlePoints(lum, &cfg.Saddle)
	if err != nil {
		return nil, err
	}

	n := rows * cols
	if len(saddles) < n {
		return nil, errors.Wrapf(ErrNotFound, "found %d saddle points, need %d", len(saddles), n)
	}
	saddles = saddles[:n]

	scores := make([]float64, n)
	points := make([]r2.Point, n)
	for i, s := range saddles {
		scores[i] = s.Score
		points[i] = r2.Point{X: float64(s.Point.X) + s.OffsetX, Y: float64(s.Point.Y) + s.OffsetY}
	}
	median, err := stats.Median(scores)
	if err != nil {
		return nil, err
	}
	if weakest := scores[n-1]; weakest < cfg.RelativeScoreMin*median {
		return nil, errors.Wrapf(ErrNotFound, "weakest corner scores %.3g against a median of %.3g", weakest, median)
	}
	return AssembleGrid(points, rows, cols, &cfg.Grid)
}
