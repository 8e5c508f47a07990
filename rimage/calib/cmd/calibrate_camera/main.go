// Package main calibrates a camera from checkerboard images listed in a file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/calib"
	"go.viam.com/camcalib/rimage/detection/chessboard"
)

const (
	flagConfig       = "config"
	flagImageList    = "image-list"
	flagRows         = "rows"
	flagCols         = "cols"
	flagSquareWidth  = "square-width"
	flagSquareHeight = "square-height"
	flagSubpixWindow = "subpix-window"
	flagWorkers      = "workers"
	flagDebugDir     = "debug-dir"
	flagOutput       = "output"
	flagMethod       = "method"
	flagDetector     = "detector"
	flagDebug        = "debug"
	flagSummary      = "summary"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	if err := newApp(stdout, stderr).Run(args); err != nil {
		fmt.Fprintln(stderr, color.RedString("error: %v", err))
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "calibrate_camera",
		Usage:     "estimate camera intrinsics and distortion from checkerboard images",
		ArgsUsage: "[image list]",
		Writer:    stdout,
		ErrWriter: stderr,
		// run reports errors and picks the exit status, the app must never exit on its own.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load calibration settings from JSON5 `FILE`",
			},
			&cli.StringFlag{
				Name:  flagImageList,
				Usage: "`FILE` listing one image path per line",
			},
			&cli.IntFlag{Name: flagRows, Usage: "interior corner rows of the board"},
			&cli.IntFlag{Name: flagCols, Usage: "interior corner columns of the board"},
			&cli.Float64Flag{Name: flagSquareWidth, Usage: "square width, in board units"},
			&cli.Float64Flag{Name: flagSquareHeight, Usage: "square height, in board units"},
			&cli.IntFlag{Name: flagSubpixWindow, Usage: "full size of the square sub-pixel search window"},
			&cli.IntFlag{Name: flagWorkers, Usage: "number of images processed at once"},
			&cli.StringFlag{Name: flagDebugDir, Usage: "write corner overlays to `DIR`"},
			&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "write the calibration as JSON to `FILE`"},
			&cli.StringFlag{Name: flagMethod, Usage: "refinement method, lm or lbfgs"},
			&cli.StringFlag{Name: flagDetector, Usage: "corner detector, saddle or opencv"},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: flagSummary, Usage: "print a table of the solved parameters"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			level := logging.INFO
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			logger := logging.NewWriterLogger("calibrate", level, stderr)

			collab, err := newCollaborators(cfg.Detector, logger.Sublogger("detector"))
			if err != nil {
				return err
			}
			collab.Report = stdout
			result, err := calib.Run(c.Context, cfg, collab, logger)
			if err != nil {
				return err
			}
			if c.Bool(flagSummary) {
				fmt.Fprintln(stdout, result.String())
			}
			return nil
		},
	}
}

// loadConfig reads the config file, if any, and applies the flags that were set on top of it.
func loadConfig(c *cli.Context) (*calib.Config, error) {
	cfg := calib.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = calib.ReadConfig(path); err != nil {
			return nil, err
		}
	}
	if c.Args().Present() {
		cfg.ImageList = c.Args().First()
	}
	if c.IsSet(flagImageList) {
		cfg.ImageList = c.String(flagImageList)
	}
	if c.IsSet(flagRows) {
		cfg.BoardSize.Rows = c.Int(flagRows)
	}
	if c.IsSet(flagCols) {
		cfg.BoardSize.Cols = c.Int(flagCols)
	}
	if c.IsSet(flagSquareWidth) {
		cfg.SquareSize.Width = c.Float64(flagSquareWidth)
	}
	if c.IsSet(flagSquareHeight) {
		cfg.SquareSize.Height = c.Float64(flagSquareHeight)
	}
	if c.IsSet(flagSubpixWindow) {
		cfg.SubpixWindow = calib.WindowSize{Width: c.Int(flagSubpixWindow), Height: c.Int(flagSubpixWindow)}
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagDebugDir) {
		cfg.DebugDir = c.String(flagDebugDir)
	}
	if c.IsSet(flagOutput) {
		cfg.Output = c.String(flagOutput)
	}
	if c.IsSet(flagMethod) {
		cfg.Solver.Method = calib.SolverMethod(c.String(flagMethod))
	}
	if c.IsSet(flagDetector) {
		cfg.Detector = c.String(flagDetector)
	}
	return cfg, nil
}

func saddleCollaborators(logger logging.Logger) calib.Collaborators {
	return calib.Collaborators{
		Detector: chessboard.NewDetector(chessboard.DefaultDetectionConf, logger),
		Refiner:  chessboard.NewSubpixRefiner(chessboard.DefaultSubpixConf),
	}
}
