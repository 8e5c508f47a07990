//go:build withcv

package chessboard

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"go.viam.com/camcalib/rimage"
)

// OpenCVDetector finds chessboard corners with OpenCV.
type OpenCVDetector struct {
	Flags gocv.CalibCBFlag
}

// NewOpenCVDetector returns a detector using adaptive thresholding and image normalization.
func NewOpenCVDetector() *OpenCVDetector {
	return &OpenCVDetector{Flags: gocv.CalibCBAdaptiveThresh | gocv.CalibCBNormalizeImage}
}

// FindCorners returns the rows*cols interior corners of the board, or an error wrapping
// ErrNotFound.
func (d *OpenCVDetector) FindCorners(img image.Image, rows, cols int) ([]r2.Point, error) {
	src, err := gocv.ImageGrayToMatGray(rimage.MakeGray(img))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	corners := gocv.NewMat()
	defer corners.Close()
	// OpenCV takes the pattern as (points per row, points per column).
	if !gocv.FindChessboardCorners(src, image.Pt(cols, rows), &corners, d.Flags) {
		return nil, ErrNotFound
	}
	if corners.Rows()*corners.Cols() != rows*cols {
		return nil, errors.Wrapf(ErrNotFound, "opencv returned %d corners", corners.Rows()*corners.Cols())
	}
	return matToPoints(corners), nil
}

// OpenCVSubpixRefiner refines corners with cv::cornerSubPix.
type OpenCVSubpixRefiner struct {
	conf SubpixConfiguration
}

// NewOpenCVSubpixRefiner returns a refiner with the given stopping criteria.
func NewOpenCVSubpixRefiner(conf SubpixConfiguration) *OpenCVSubpixRefiner {
	return &OpenCVSubpixRefiner{conf: conf}
}

// RefineCorners refines every corner within window, given as the full (width, height) of the
// search region.
func (sr *OpenCVSubpixRefiner) RefineCorners(gray *image.Gray, corners []r2.Point, window image.Point) ([]r2.Point, error) {
	if window.X < 3 || window.Y < 3 {
		return nil, errors.Errorf("sub-pixel window must be at least 3x3, got %dx%d", window.X, window.Y)
	}
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	pts := gocv.NewMatWithSize(len(corners), 1, gocv.MatTypeCV32FC2)
	defer pts.Close()
	for i, c := range corners {
		pts.SetFloatAt(i, 0, float32(c.X))
		pts.SetFloatAt(i, 1, float32(c.Y))
	}
	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, sr.conf.MaxIterations, sr.conf.Epsilon)
	gocv.CornerSubPix(src, &pts, image.Pt(window.X/2, window.Y/2), image.Pt(-1, -1), criteria)
	return matToPoints(pts), nil
}

// matToPoints reads a CV_32FC2 vector of points, stored as a single row or a single column.
func matToPoints(m gocv.Mat) []r2.Point {
	n := m.Rows() * m.Cols()
	out := make([]r2.Point, n)
	for i := 0; i < n; i++ {
		var v gocv.Vecf
		if m.Rows() == 1 {
			v = m.GetVecfAt(0, i)
		} else {
			v = m.GetVecfAt(i, 0)
		}
		out[i] = r2.Point{X: float64(v[0]), Y: float64(v[1])}
	}
	return out
}
