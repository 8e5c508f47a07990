package calib

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/camcalib/rimage/transform"
)

// ViewResult is the pose and reprojection error of one image.
type ViewResult struct {
	Path        string    `json:"path"`
	Rotation    r3.Vector `json:"rvec"`
	Translation r3.Vector `json:"tvec"`
	Error       float64   `json:"error"`
}

// ImageSize is the resolution shared by the calibration images.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the outcome of a calibration run.
type Result struct {
	Camera       *transform.PinholeCameraModel `json:"camera"`
	CameraMatrix [3][3]float64                 `json:"camera_matrix"`
	DistCoeffs   [5]float64                    `json:"dist_coeffs"`
	ImageSize    ImageSize                     `json:"image_size"`
	Views        []ViewResult                  `json:"views"`
	MeanError    float64                       `json:"mean_error"`
	RMS          float64                       `json:"rms"`
	Iterations   int                           `json:"iterations"`
	Skipped      []string                      `json:"skipped,omitempty"`

	Dataset  *CalibrationDataset `json:"-"`
	Solution *Solution           `json:"-"`
	Report   *ReprojectionReport `json:"-"`
}

// NewResult gathers the dataset, solution and report of a run.
func NewResult(ds *CalibrationDataset, sol *Solution, report *ReprojectionReport) *Result {
	k := sol.Intrinsics.CameraMatrix()
	var cameraMatrix [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cameraMatrix[i][j] = k.At(i, j)
		}
	}
	views := lo.Map(sol.Poses, func(pose ExtrinsicPose, i int) ViewResult {
		return ViewResult{
			Path:        ds.Sources[i],
			Rotation:    pose.Rotation,
			Translation: pose.Translation,
			Error:       report.PerImageError[i],
		}
	})
	return &Result{
		Camera:       sol.Intrinsics.PinholeModel(ds.ImageSize),
		CameraMatrix: cameraMatrix,
		DistCoeffs:   sol.Intrinsics.DistCoeffs(),
		ImageSize:    ImageSize{Width: ds.ImageSize.X, Height: ds.ImageSize.Y},
		Views:        views,
		MeanError:    report.MeanError,
		RMS:          sol.RMS,
		Iterations:   sol.Iterations,
		Skipped:      lo.Map(ds.Skipped, func(s SkippedImage, _ int) string { return s.Path }),
		Dataset:      ds,
		Solution:     sol,
		Report:       report,
	}
}

// WriteJSON writes the result as indented JSON to path.
func (r *Result) WriteJSON(path string) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create result file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadResult reads a result written by WriteJSON.
func ReadResult(path string) (*Result, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "cannot parse result %s", path)
	}
	return &r, nil
}

// String prints a table of the solved parameters and the error metrics.
func (r *Result) String() string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRow(table.Row{"image size", fmt.Sprintf("%dx%d", r.ImageSize.Width, r.ImageSize.Height)})
	t.AppendRow(table.Row{"fx", format(r.CameraMatrix[0][0])})
	t.AppendRow(table.Row{"fy", format(r.CameraMatrix[1][1])})
	t.AppendRow(table.Row{"cx", format(r.CameraMatrix[0][2])})
	t.AppendRow(table.Row{"cy", format(r.CameraMatrix[1][2])})
	for i, name := range []string{"k1", "k2", "p1", "p2", "k3"} {
		t.AppendRow(table.Row{name, format(r.DistCoeffs[i])})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"views", len(r.Views)})
	t.AppendRow(table.Row{"skipped", len(r.Skipped)})
	t.AppendRow(table.Row{"rms", format(r.RMS)})
	t.AppendRow(table.Row{"mean error", format(r.MeanError)})
	return t.Render()
}
