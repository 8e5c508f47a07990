package calib

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientData means no image survived to feed the solver.
	ErrInsufficientData = errors.New("insufficient calibration data")
	// ErrDegenerateGeometry means the views do not constrain a physically sane camera model.
	ErrDegenerateGeometry = errors.New("degenerate calibration geometry")
	// ErrInconsistentImageSize means the images of a dataset do not share one resolution.
	ErrInconsistentImageSize = errors.New("inconsistent image size")
	// ErrCornerDetection is matched by every CornerDetectionError.
	ErrCornerDetection = errors.New("chessboard cannot be found")
)

// NewInsufficientDataError returns an error wrapping ErrInsufficientData.
func NewInsufficientDataError(msg string) error {
	return errors.Wrap(ErrInsufficientData, msg)
}

// NewDegenerateGeometryError returns an error wrapping ErrDegenerateGeometry.
func NewDegenerateGeometryError(msg string) error {
	return errors.Wrap(ErrDegenerateGeometry, msg)
}

// NewInconsistentImageSizeError reports an image whose size differs from the dataset's.
func NewInconsistentImageSizeError(path string, expected, actual image.Point) error {
	return errors.Wrapf(ErrInconsistentImageSize, "%s is %dx%d, expected %dx%d",
		path, actual.X, actual.Y, expected.X, expected.Y)
}

// CornerDetectionError is returned when the board cannot be found in an image.
type CornerDetectionError struct {
	Path string
	Err  error
}

func (e *CornerDetectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chessboard cannot be found in %s", e.Path)
	}
	return fmt.Sprintf("chessboard cannot be found in %s: %v", e.Path, e.Err)
}

// Unwrap returns the detector error.
func (e *CornerDetectionError) Unwrap() error {
	return e.Err
}

// Is makes every CornerDetectionError match ErrCornerDetection.
func (e *CornerDetectionError) Is(target error) bool {
	return target == ErrCornerDetection
}
