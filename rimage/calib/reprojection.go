package calib

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/camcalib/rimage/transform"
)

// ReprojectionReport holds the reprojection error of every image and their mean, in pixels.
type ReprojectionReport struct {
	PerImageError []float64 `json:"per_image_error"`
	MeanError     float64   `json:"mean_error"`
}

// Evaluate projects the board of every image through the solved model and compares it with the
// detected corners. The error of an image is the L2 norm of the concatenated difference vector
// divided by the number of points. It has no side effects and always returns the same report for
// the same inputs.
func Evaluate(ds *CalibrationDataset, intrinsics IntrinsicModel, poses []ExtrinsicPose) (*ReprojectionReport, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if len(poses) != ds.Len() {
		return nil, errors.Errorf("got %d poses for %d images", len(poses), ds.Len())
	}
	intr := intrinsics.PinholeIntrinsics(ds.ImageSize)
	distortion := transform.NewBrownConradyFromCoefficients(intrinsics.Distortion)

	perImage := make([]float64, ds.Len())
	for i, pose := range poses {
		projected := transform.ProjectPoints(ds.ObjectPoints[i], pose.Rotation, pose.Translation, intr, distortion)
		perImage[i] = flatNorm(projected, ds.ImagePoints[i]) / float64(ds.PointCounts[i])
	}
	mean, err := stats.Mean(perImage)
	if err != nil {
		return nil, err
	}
	return &ReprojectionReport{PerImageError: perImage, MeanError: mean}, nil
}

// flatNorm is the L2 norm of the difference of a and b flattened to (x0, y0, x1, y1, ...).
func flatNorm(a, b []r2.Point) float64 {
	diff := make([]float64, 0, 2*len(a))
	for i := range a {
		d := a[i].Sub(b[i])
		diff = append(diff, d.X, d.Y)
	}
	return floats.Norm(diff, 2)
}

// formatError prints like C++ ostream with its default precision of 6 significant digits.
func formatError(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteReport prints one line per image and the mean error.
func WriteReport(w io.Writer, report *ReprojectionReport) error {
	for i, e := range report.PerImageError {
		if _, err := fmt.Fprintf(w, "image[%d] mean error is %spx\n", i, formatError(e)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total mean error is %s\n", formatError(report.MeanError))
	return err
}
