package calib

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ImageLoader decodes the image stored at a path.
type ImageLoader interface {
	Load(path string) (image.Image, error)
}

// CornerDetector finds the rows*cols interior corners of the board in raster order.
type CornerDetector interface {
	FindCorners(img image.Image, rows, cols int) ([]r2.Point, error)
}

// SubpixRefiner refines corners within a search window of the given full size. The output keeps
// the order of corners.
type SubpixRefiner interface {
	RefineCorners(gray *image.Gray, corners []r2.Point, window image.Point) ([]r2.Point, error)
}

// CornerSink receives every image in which the board was found, for visual inspection.
type CornerSink interface {
	ShowCorners(index int, path string, img image.Image, board BoardSpec, corners []r2.Point) error
}

// SkippedImage is an image that did not make it into the dataset.
type SkippedImage struct {
	Path string
	Err  error
}

// CalibrationDataset holds the corner correspondences of every processed image. Entry i of
// ImagePoints, ObjectPoints, PointCounts and Sources describe the same image. All ObjectPoints
// entries share one backing slice and must not be modified.
type CalibrationDataset struct {
	Board        BoardSpec
	ImagePoints  [][]r2.Point
	ObjectPoints [][]r3.Vector
	PointCounts  []int
	ImageSize    image.Point
	Sources      []string
	Skipped      []SkippedImage

	objectPoints []r3.Vector
}

// NewCalibrationDataset returns an empty dataset for board.
func NewCalibrationDataset(board BoardSpec) *CalibrationDataset {
	return &CalibrationDataset{Board: board, objectPoints: board.ObjectPoints()}
}

// Len is the number of images in the dataset.
func (ds *CalibrationDataset) Len() int {
	return len(ds.ImagePoints)
}

// Add appends the corners detected in the image at path.
func (ds *CalibrationDataset) Add(path string, size image.Point, corners []r2.Point) error {
	if ds.objectPoints == nil {
		ds.objectPoints = ds.Board.ObjectPoints()
	}
	if len(corners) != len(ds.objectPoints) {
		return errors.Errorf("%s has %d corners, expected %d", path, len(corners), len(ds.objectPoints))
	}
	if err := ds.checkSize(path, size); err != nil {
		return err
	}
	ds.ImagePoints = append(ds.ImagePoints, corners)
	ds.ObjectPoints = append(ds.ObjectPoints, ds.objectPoints)
	ds.PointCounts = append(ds.PointCounts, len(corners))
	ds.Sources = append(ds.Sources, path)
	return nil
}

// Skip records an image that was left out of the dataset. Its size is not checked, only the
// images that contribute corners must agree.
func (ds *CalibrationDataset) Skip(path string, err error) {
	ds.Skipped = append(ds.Skipped, SkippedImage{Path: path, Err: err})
}

func (ds *CalibrationDataset) checkSize(path string, size image.Point) error {
	if ds.ImageSize == (image.Point{}) {
		ds.ImageSize = size
		return nil
	}
	if ds.ImageSize != size {
		return NewInconsistentImageSizeError(path, ds.ImageSize, size)
	}
	return nil
}

// SkippedError combines the errors of all skipped images, or returns nil.
func (ds *CalibrationDataset) SkippedError() error {
	var err error
	for _, s := range ds.Skipped {
		err = multierr.Append(err, s.Err)
	}
	return err
}

// Validate checks that the dataset has at least one image and that its parallel sequences agree.
func (ds *CalibrationDataset) Validate() error {
	if ds == nil || ds.Len() == 0 {
		return NewInsufficientDataError("no image produced corner correspondences")
	}
	n := ds.Len()
	if len(ds.ObjectPoints) != n || len(ds.PointCounts) != n {
		return errors.Errorf("dataset sequences differ in length: %d image, %d object, %d count",
			n, len(ds.ObjectPoints), len(ds.PointCounts))
	}
	if ds.ImageSize.X <= 0 || ds.ImageSize.Y <= 0 {
		return errors.Errorf("invalid image size %dx%d", ds.ImageSize.X, ds.ImageSize.Y)
	}
	for i := 0; i < n; i++ {
		if len(ds.ImagePoints[i]) != ds.PointCounts[i] || len(ds.ObjectPoints[i]) != ds.PointCounts[i] {
			return errors.Errorf("image %d has %d image points and %d object points, expected %d",
				i, len(ds.ImagePoints[i]), len(ds.ObjectPoints[i]), ds.PointCounts[i])
		}
		if ds.PointCounts[i] == 0 {
			return errors.Errorf("image %d has no points", i)
		}
	}
	return nil
}
