package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/test"

	"go.viam.com/camcalib/rimage/calib"
	"go.viam.com/camcalib/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

func writeSceneImages(t *testing.T) (string, string) {
	t.Helper()
	scene := testutils.NewDefaultScene()
	dir := t.TempDir()
	var paths []string
	for i, view := range scene.DefaultViews() {
		paths = append(paths, testutils.WritePNG(t, dir, fmt.Sprintf("left%02d.png", i), scene.Render(view)))
	}
	return dir, testutils.WriteImageList(t, dir, "imagelist.txt", paths)
}

func TestCalibrateCommand(t *testing.T) {
	dir, list := writeSceneImages(t)
	output := filepath.Join(dir, "calibration.json")

	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run([]string{
		"calibrate_camera", "--output", output, "--workers", "2", "--summary", list,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "image[4] mean error is ")
	test.That(t, stdout.String(), test.ShouldContainSubstring, "total mean error is ")
	test.That(t, stdout.String(), test.ShouldContainSubstring, "PARAMETER")
	test.That(t, stderr.String(), test.ShouldContainSubstring, "calibration solved")

	result, err := calib.ReadResult(output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Views, test.ShouldHaveLength, 5)
	test.That(t, result.CameraMatrix[0][0], test.ShouldAlmostEqual, 420, 420*0.02)
}

func TestCalibrateCommandConfig(t *testing.T) {
	dir, list := writeSceneImages(t)
	cfgPath := filepath.Join(dir, "calibrate.json5")
	err := os.WriteFile(cfgPath, []byte(fmt.Sprintf(`{
		// wrong on purpose, the flags fix it
		board_size: {rows: 9, cols: 6},
		image_list: %q,
		solver: {method: "lbfgs"},
	}`, list)), 0o600)
	test.That(t, err, test.ShouldBeNil)

	var stdout, stderr bytes.Buffer
	err = newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "-c", cfgPath})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "insufficient calibration data")

	stdout.Reset()
	err = newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "-c", cfgPath, "--rows", "6", "--cols", "5"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "total mean error is ")
}

func TestCalibrateCommandErrors(t *testing.T) {
	_, list := writeSceneImages(t)

	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "--method", "newton", list})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "config.solver.method")

	err = newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "--subpix-window", "1", list})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "config.subpix_window")

	err = newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "-c", filepath.Join(t.TempDir(), "missing.json5")})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read config")
}

func TestCalibrateCommandNoUsableImages(t *testing.T) {
	_, list := writeSceneImages(t)

	exits := 0
	prevExiter := cli.OsExiter
	cli.OsExiter = func(int) { exits++ }
	defer func() { cli.OsExiter = prevExiter }()

	var stdout, stderr bytes.Buffer
	// every image is searched for a 9x6 board and skipped
	err := newApp(&stdout, &stderr).Run([]string{"calibrate_camera", "--rows", "9", "--cols", "6", list})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, calib.ErrInsufficientData), test.ShouldBeTrue)
	test.That(t, errors.Is(err, calib.ErrCornerDetection), test.ShouldBeTrue)
	test.That(t, exits, test.ShouldEqual, 0)

	stderr.Reset()
	code := run([]string{"calibrate_camera", "--rows", "9", "--cols", "6", list}, &stdout, &stderr)
	test.That(t, code, test.ShouldEqual, 1)
	test.That(t, exits, test.ShouldEqual, 0)
	test.That(t, stderr.String(), test.ShouldContainSubstring, "error: cannot build calibration dataset")
	test.That(t, stderr.String(), test.ShouldContainSubstring, "insufficient calibration data")
}

func TestRunExitStatus(t *testing.T) {
	_, list := writeSceneImages(t)

	var stdout, stderr bytes.Buffer
	test.That(t, run([]string{"calibrate_camera", list}, &stdout, &stderr), test.ShouldEqual, 0)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "total mean error is ")

	stderr.Reset()
	test.That(t, run([]string{"calibrate_camera", "--method", "newton", list}, &stdout, &stderr), test.ShouldEqual, 1)
	test.That(t, stderr.String(), test.ShouldContainSubstring, "error: ")
	test.That(t, stderr.String(), test.ShouldContainSubstring, "config.solver.method")
}
