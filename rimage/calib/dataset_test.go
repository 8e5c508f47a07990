package calib

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDatasetAdd(t *testing.T) {
	board := BoardSpec{Rows: 2, Cols: 2, SquareWidth: 1, SquareHeight: 1}
	ds := NewCalibrationDataset(board)
	test.That(t, ds.Validate(), test.ShouldBeError)
	test.That(t, errors.Is(ds.Validate(), ErrInsufficientData), test.ShouldBeTrue)

	corners := []r2.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}}
	test.That(t, ds.Add("a.png", image.Pt(640, 480), corners), test.ShouldBeNil)
	test.That(t, ds.Add("b.png", image.Pt(640, 480), corners), test.ShouldBeNil)
	test.That(t, ds.Len(), test.ShouldEqual, 2)
	test.That(t, ds.Sources, test.ShouldResemble, []string{"a.png", "b.png"})
	test.That(t, ds.PointCounts, test.ShouldResemble, []int{4, 4})
	test.That(t, ds.ImageSize, test.ShouldResemble, image.Pt(640, 480))
	test.That(t, ds.ObjectPoints[1], test.ShouldResemble, board.ObjectPoints())
	test.That(t, ds.Validate(), test.ShouldBeNil)

	// wrong number of corners
	err := ds.Add("c.png", image.Pt(640, 480), corners[:3])
	test.That(t, err, test.ShouldBeError, "c.png has 3 corners, expected 4")
	test.That(t, ds.Len(), test.ShouldEqual, 2)

	// different size
	err = ds.Add("d.png", image.Pt(320, 240), corners)
	test.That(t, errors.Is(err, ErrInconsistentImageSize), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "d.png is 320x240, expected 640x480")
	test.That(t, ds.Len(), test.ShouldEqual, 2)
}

func TestDatasetSkip(t *testing.T) {
	ds := NewCalibrationDataset(DefaultBoardSpec)

	notFound := &CornerDetectionError{Path: "a.png", Err: errNoBoard}
	ds.Skip("a.png", notFound)
	ds.Skip("b.png", errNoSuchImage)
	// skipped images do not fix the size
	test.That(t, ds.ImageSize, test.ShouldResemble, image.Point{})

	test.That(t, len(ds.Skipped), test.ShouldEqual, 2)
	test.That(t, ds.Skipped[0].Path, test.ShouldEqual, "a.png")
	test.That(t, ds.Skipped[1].Path, test.ShouldEqual, "b.png")
	skipped := ds.SkippedError()
	test.That(t, errors.Is(skipped, ErrCornerDetection), test.ShouldBeTrue)
	test.That(t, errors.Is(skipped, errNoSuchImage), test.ShouldBeTrue)

	test.That(t, errors.Is(ds.Validate(), ErrInsufficientData), test.ShouldBeTrue)
}

func TestDatasetValidateMismatch(t *testing.T) {
	ds := NewCalibrationDataset(DefaultBoardSpec)
	pts := make([]r2.Point, DefaultBoardSpec.NumCorners())
	test.That(t, ds.Add("a.png", image.Pt(10, 10), pts), test.ShouldBeNil)

	ds.PointCounts = append(ds.PointCounts, 30)
	test.That(t, ds.Validate(), test.ShouldBeError, "dataset sequences differ in length: 1 image, 1 object, 2 count")

	ds.PointCounts = ds.PointCounts[:1]
	ds.ImagePoints[0] = ds.ImagePoints[0][:29]
	test.That(t, ds.Validate(), test.ShouldBeError, "image 0 has 29 image points and 30 object points, expected 30")
}
