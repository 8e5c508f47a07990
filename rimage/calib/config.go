package calib

import (
	"fmt"
	"image"
	"os"

	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"
)

// Names of the corner detectors.
const (
	DetectorSaddle = "saddle"
	DetectorOpenCV = "opencv"
)

// DefaultImageList is the image list read when none is configured.
const DefaultImageList = "imagelist.txt"

// BoardSize counts the interior corners of the board.
type BoardSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// SquareSize is the physical size of a board square.
type SquareSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// WindowSize is the full size of the sub-pixel search window.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SolverConfig configures the solver. IntrinsicGuess is the path of a JSON file holding initial
// pinhole intrinsics.
type SolverConfig struct {
	SolverOptions
	IntrinsicGuess string `json:"intrinsic_guess,omitempty"`
}

// A Config describes a calibration run.
type Config struct {
	BoardSize    BoardSize    `json:"board_size"`
	SquareSize   SquareSize   `json:"square_size"`
	ImageList    string       `json:"image_list"`
	SubpixWindow WindowSize   `json:"subpix_window"`
	Workers      int          `json:"workers"`
	DebugDir     string       `json:"debug_dir,omitempty"`
	Output       string       `json:"output,omitempty"`
	Detector     string       `json:"detector"`
	Solver       SolverConfig `json:"solver"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() *Config {
	return &Config{
		BoardSize:    BoardSize{Rows: DefaultBoardSpec.Rows, Cols: DefaultBoardSpec.Cols},
		SquareSize:   SquareSize{Width: DefaultBoardSpec.SquareWidth, Height: DefaultBoardSpec.SquareHeight},
		ImageList:    DefaultImageList,
		SubpixWindow: WindowSize{Width: DefaultSubpixWindow.X, Height: DefaultSubpixWindow.Y},
		Workers:      1,
		Detector:     DetectorSaddle,
		Solver: SolverConfig{SolverOptions: SolverOptions{
			Method:        MethodLevenbergMarquardt,
			MaxIterations: defaultMaxIterations,
			MinViews:      defaultMinViews,
		}},
	}
}

// ReadConfig reads a JSON5 config file. Keys missing from the file keep their default value.
func ReadConfig(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	cfg := DefaultConfig()
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %s", path)
	}
	return cfg, nil
}

// Board returns the board described by the config.
func (cfg *Config) Board() BoardSpec {
	return BoardSpec{
		Rows:         cfg.BoardSize.Rows,
		Cols:         cfg.BoardSize.Cols,
		SquareWidth:  cfg.SquareSize.Width,
		SquareHeight: cfg.SquareSize.Height,
	}
}

// Window returns the sub-pixel search window.
func (cfg *Config) Window() image.Point {
	return image.Pt(cfg.SubpixWindow.Width, cfg.SubpixWindow.Height)
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.BoardSize.Rows < 2 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "board_size"),
			errors.Errorf("rows must be at least 2, got %d", cfg.BoardSize.Rows))
	}
	if cfg.BoardSize.Cols < 2 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "board_size"),
			errors.Errorf("cols must be at least 2, got %d", cfg.BoardSize.Cols))
	}
	if cfg.SquareSize.Width <= 0 || cfg.SquareSize.Height <= 0 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "square_size"),
			errors.Errorf("width and height must be positive, got %gx%g", cfg.SquareSize.Width, cfg.SquareSize.Height))
	}
	if cfg.ImageList == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "image_list")
	}
	if cfg.SubpixWindow.Width < 3 || cfg.SubpixWindow.Height < 3 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "subpix_window"),
			errors.Errorf("window must be at least 3x3, got %dx%d", cfg.SubpixWindow.Width, cfg.SubpixWindow.Height))
	}
	if cfg.Workers < 0 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "workers"),
			errors.Errorf("cannot be negative, got %d", cfg.Workers))
	}
	switch cfg.Detector {
	case "", DetectorSaddle, DetectorOpenCV:
	default:
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "detector"),
			errors.Errorf("unknown detector %q", cfg.Detector))
	}
	return cfg.Solver.Validate(fmt.Sprintf("%s.%s", path, "solver"))
}

// Validate ensures the solver options are valid.
func (sc *SolverConfig) Validate(path string) error {
	if err := sc.SolverOptions.Validate(); err != nil {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "method"), err)
	}
	if sc.MaxIterations < 0 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "max_iterations"),
			errors.Errorf("cannot be negative, got %d", sc.MaxIterations))
	}
	if sc.MinViews < 0 {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "min_views"),
			errors.Errorf("cannot be negative, got %d", sc.MinViews))
	}
	return nil
}
