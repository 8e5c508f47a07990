package calib

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibrate.json5")
	err := os.WriteFile(path, []byte(`{
		// a 9x6 board printed on A4
		board_size: {rows: 6, cols: 9},
		square_size: {width: 25.4, height: 25.4},
		image_list: "shots.txt",
		workers: 4,
		solver: {
			method: "lbfgs",
			fix_k3: true,
			intrinsic_guess: "guess.json",
		},
	}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := ReadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Validate("config"), test.ShouldBeNil)
	test.That(t, cfg.Board(), test.ShouldResemble, BoardSpec{Rows: 6, Cols: 9, SquareWidth: 25.4, SquareHeight: 25.4})
	test.That(t, cfg.ImageList, test.ShouldEqual, "shots.txt")
	test.That(t, cfg.Workers, test.ShouldEqual, 4)
	test.That(t, cfg.Solver.Method, test.ShouldEqual, MethodLBFGS)
	test.That(t, cfg.Solver.FixK3, test.ShouldBeTrue)
	test.That(t, cfg.Solver.IntrinsicGuess, test.ShouldEqual, "guess.json")

	// missing keys keep their defaults
	test.That(t, cfg.Window(), test.ShouldResemble, DefaultSubpixWindow)
	test.That(t, cfg.Detector, test.ShouldEqual, DetectorSaddle)
	test.That(t, cfg.Solver.MaxIterations, test.ShouldEqual, defaultMaxIterations)
	test.That(t, cfg.Solver.MinViews, test.ShouldEqual, defaultMinViews)
}

func TestReadConfigErrors(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read config")

	path := filepath.Join(t.TempDir(), "broken.json")
	test.That(t, os.WriteFile(path, []byte(`{board_size: `), 0o600), test.ShouldBeNil)
	_, err = ReadConfig(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot parse config")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("config"), test.ShouldBeNil)
	test.That(t, cfg.Board(), test.ShouldResemble, DefaultBoardSpec)
	test.That(t, cfg.ImageList, test.ShouldEqual, "imagelist.txt")
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(cfg *Config)
		field  string
	}{
		{"rows", func(cfg *Config) { cfg.BoardSize.Rows = 1 }, "config.board_size"},
		{"cols", func(cfg *Config) { cfg.BoardSize.Cols = 0 }, "config.board_size"},
		{"square", func(cfg *Config) { cfg.SquareSize.Height = -1 }, "config.square_size"},
		{"image list", func(cfg *Config) { cfg.ImageList = "" }, "image_list"},
		{"window", func(cfg *Config) { cfg.SubpixWindow.Width = 1 }, "config.subpix_window"},
		{"workers", func(cfg *Config) { cfg.Workers = -2 }, "config.workers"},
		{"detector", func(cfg *Config) { cfg.Detector = "magic" }, "config.detector"},
		{"method", func(cfg *Config) { cfg.Solver.Method = "newton" }, "config.solver.method"},
		{"iterations", func(cfg *Config) { cfg.Solver.MaxIterations = -1 }, "config.solver.max_iterations"},
		{"views", func(cfg *Config) { cfg.Solver.MinViews = -3 }, "config.solver.min_views"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate("config")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.field)
		})
	}
}
