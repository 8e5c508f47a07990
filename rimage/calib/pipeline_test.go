package calib

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/detection/chessboard"
	"go.viam.com/camcalib/testutils"
)

// renderedImageList renders the default views of scene, adds a blank image and a missing one, and
// returns the image list.
func renderedImageList(t *testing.T, scene *testutils.CheckerboardScene) string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, view := range scene.DefaultViews() {
		paths = append(paths, testutils.WritePNG(t, dir, fmt.Sprintf("view%d.png", i), scene.Render(view)))
		if i == 1 {
			paths = append(paths, testutils.WritePNG(t, dir, "blank.png", blankImage(scene.ImageSize())))
		}
	}
	paths = append(paths, filepath.Join(dir, "missing.png"))
	return testutils.WriteImageList(t, dir, "imagelist.txt", paths)
}

func blankImage(size image.Point) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func TestRunRenderedImages(t *testing.T) {
	scene := testutils.NewDefaultScene()
	out := t.TempDir()
	cfg := DefaultConfig()
	cfg.ImageList = renderedImageList(t, scene)
	cfg.Output = filepath.Join(out, "calibration.json")
	cfg.DebugDir = filepath.Join(out, "debug")
	cfg.Workers = 2

	var report bytes.Buffer
	logger, logs := logging.NewObservedTestLogger(t)
	result, err := Run(context.Background(), cfg, Collaborators{
		Detector: chessboard.NewDetector(chessboard.DefaultDetectionConf, logger),
		Refiner:  chessboard.NewSubpixRefiner(chessboard.DefaultSubpixConf),
		Report:   &report,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, len(result.Views), test.ShouldEqual, 5)
	test.That(t, result.Skipped, test.ShouldHaveLength, 2)
	test.That(t, filepath.Base(result.Skipped[0]), test.ShouldEqual, "blank.png")
	test.That(t, filepath.Base(result.Skipped[1]), test.ShouldEqual, "missing.png")
	test.That(t, filepath.Base(result.Views[2].Path), test.ShouldEqual, "view2.png")

	test.That(t, result.CameraMatrix[0][0], test.ShouldAlmostEqual, 420, 420*0.02)
	test.That(t, result.CameraMatrix[1][1], test.ShouldAlmostEqual, 410, 410*0.02)
	test.That(t, result.CameraMatrix[0][2], test.ShouldAlmostEqual, 243, 10)
	test.That(t, result.CameraMatrix[1][2], test.ShouldAlmostEqual, 178, 10)
	test.That(t, result.RMS, test.ShouldBeLessThan, 0.5)
	test.That(t, result.MeanError, test.ShouldBeLessThan, 0.1)

	lines := strings.Split(strings.TrimSuffix(report.String(), "\n"), "\n")
	test.That(t, lines, test.ShouldHaveLength, 6)
	test.That(t, lines[0], test.ShouldStartWith, "image[0] mean error is ")
	test.That(t, lines[0], test.ShouldEndWith, "px")
	test.That(t, lines[5], test.ShouldStartWith, "total mean error is ")

	written, err := ReadResult(cfg.Output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.CameraMatrix, test.ShouldResemble, result.CameraMatrix)

	// overlays are named after the position of the image in the list
	overlays, err := filepath.Glob(filepath.Join(cfg.DebugDir, "*.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, overlays, test.ShouldHaveLength, 5)
	_, err = os.Stat(filepath.Join(cfg.DebugDir, "3_view2.png"))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, logs.FilterMessage("chessboard cannot be found").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("cannot load image").Len(), test.ShouldEqual, 1)
}

func TestRunFakeCamera(t *testing.T) {
	scene := testutils.NewDefaultScene()
	camera, paths := sceneCamera(scene)
	cfg := DefaultConfig()
	cfg.ImageList = testutils.WriteImageList(t, t.TempDir(), "list.txt", paths)

	result, err := Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.CameraMatrix[0][0], test.ShouldAlmostEqual, 420, 1e-3)
	test.That(t, result.MeanError, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, result.Skipped, test.ShouldBeEmpty)
}

func TestRunIntrinsicGuess(t *testing.T) {
	scene := testutils.NewDefaultScene()
	camera, paths := sceneCamera(scene)
	dir := t.TempDir()
	guess := filepath.Join(dir, "guess.json")
	err := os.WriteFile(guess, []byte(`{"intrinsic_parameters": {"width_px": 480, "height_px": 360, `+
		`"fx": 400, "fy": 400, "ppx": 240, "ppy": 180}}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg := DefaultConfig()
	cfg.ImageList = testutils.WriteImageList(t, dir, "list.txt", paths)
	cfg.Solver.IntrinsicGuess = guess
	result, err := Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.CameraMatrix[0][0], test.ShouldAlmostEqual, 420, 1e-2)

	cfg.Solver.IntrinsicGuess = filepath.Join(dir, "missing.json")
	_, err = Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read initial intrinsics")
}

func TestRunErrors(t *testing.T) {
	scene := testutils.NewDefaultScene()
	camera, paths := sceneCamera(scene)
	logger := logging.NewTestLogger(t)

	cfg := DefaultConfig()
	cfg.BoardSize.Rows = 0
	_, err := Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "config.board_size")

	cfg = DefaultConfig()
	cfg.ImageList = filepath.Join(t.TempDir(), "missing.txt")
	_, err = Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read image list")

	// two usable views are not enough by default
	cfg.ImageList = testutils.WriteImageList(t, t.TempDir(), "list.txt", paths[:2])
	_, err = Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logger)
	test.That(t, errors.Is(err, ErrDegenerateGeometry), test.ShouldBeTrue)

	cfg.ImageList = testutils.WriteImageList(t, t.TempDir(), "list.txt", nil)
	_, err = Run(context.Background(), cfg, Collaborators{Loader: camera, Detector: camera}, logger)
	test.That(t, errors.Is(err, ErrInsufficientData), test.ShouldBeTrue)
}
