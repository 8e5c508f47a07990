package calib

import (
	"context"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/transform"
	"go.viam.com/camcalib/testutils"
)

func solvedResult(t *testing.T) *Result {
	t.Helper()
	scene := testutils.NewDefaultScene()
	scene.Distortion = &transform.BrownConrady{RadialK1: -0.1}
	ds := syntheticDataset(t, scene, scene.DefaultViews())
	ds.Skipped = append(ds.Skipped, SkippedImage{Path: "blank.png", Err: errNoBoard})

	sol, err := Calibrate(context.Background(), ds, SolverOptions{FixK3: true}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	report, err := Evaluate(ds, sol.Intrinsics, sol.Poses)
	test.That(t, err, test.ShouldBeNil)
	return NewResult(ds, sol, report)
}

func TestNewResult(t *testing.T) {
	result := solvedResult(t)
	test.That(t, result.ImageSize, test.ShouldResemble, ImageSize{Width: 480, Height: 360})
	test.That(t, result.CameraMatrix[0][0], test.ShouldAlmostEqual, 420, 0.05)
	test.That(t, result.CameraMatrix[1][1], test.ShouldAlmostEqual, 410, 0.05)
	test.That(t, result.CameraMatrix[0][1], test.ShouldEqual, 0)
	test.That(t, result.CameraMatrix[2], test.ShouldResemble, [3]float64{0, 0, 1})
	test.That(t, result.DistCoeffs[0], test.ShouldAlmostEqual, -0.1, 0.005)
	test.That(t, result.Camera.Fx, test.ShouldEqual, result.CameraMatrix[0][0])
	test.That(t, result.Camera.Width, test.ShouldEqual, 480)

	test.That(t, len(result.Views), test.ShouldEqual, 5)
	test.That(t, result.Views[3].Path, test.ShouldEqual, "view3.png")
	test.That(t, result.Views[3].Translation, test.ShouldResemble, result.Solution.Poses[3].Translation)
	test.That(t, result.Views[3].Error, test.ShouldEqual, result.Report.PerImageError[3])
	test.That(t, result.MeanError, test.ShouldEqual, result.Report.MeanError)
	test.That(t, result.Skipped, test.ShouldResemble, []string{"blank.png"})

	// the camera model reprojects the board like the solution does
	view := result.Views[0]
	projected := transform.ProjectPoints(result.Dataset.ObjectPoints[0], view.Rotation, view.Translation,
		result.Camera.PinholeCameraIntrinsics, result.Camera.Distortion)
	test.That(t, projected[0].Sub(result.Dataset.ImagePoints[0][0]).Norm(), test.ShouldBeLessThan, 0.01)
}

func TestResultJSON(t *testing.T) {
	result := solvedResult(t)
	path := filepath.Join(t.TempDir(), "calibration.json")
	test.That(t, result.WriteJSON(path), test.ShouldBeNil)

	read, err := ReadResult(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.CameraMatrix, test.ShouldResemble, result.CameraMatrix)
	test.That(t, read.DistCoeffs, test.ShouldResemble, result.DistCoeffs)
	test.That(t, read.Views, test.ShouldResemble, result.Views)
	test.That(t, read.Skipped, test.ShouldResemble, result.Skipped)
	test.That(t, read.Camera.PinholeCameraIntrinsics, test.ShouldResemble, result.Camera.PinholeCameraIntrinsics)
	test.That(t, read.Camera.Distortion, test.ShouldResemble, result.Camera.Distortion)
	test.That(t, read.Dataset, test.ShouldBeNil)

	_, err = ReadResult(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, result.WriteJSON(filepath.Join(t.TempDir(), "no", "such", "dir.json")), test.ShouldNotBeNil)
}

func TestResultString(t *testing.T) {
	result := solvedResult(t)
	out := result.String()
	for _, s := range []string{"PARAMETER", "image size", "480x360", "fx", "k1", "rms", "mean error"} {
		test.That(t, out, test.ShouldContainSubstring, s)
	}
}
