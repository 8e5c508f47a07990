// Package calib calibrates a pinhole camera from views of a planar checkerboard.
package calib

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// BoardSpec describes the calibration target. Rows and Cols count interior corners.
type BoardSpec struct {
	Rows         int     `json:"rows"`
	Cols         int     `json:"cols"`
	SquareWidth  float64 `json:"square_width"`
	SquareHeight float64 `json:"square_height"`
}

// DefaultBoardSpec is a 6x5 board of 20x20 squares.
var DefaultBoardSpec = BoardSpec{Rows: 6, Cols: 5, SquareWidth: 20, SquareHeight: 20}

// Validate checks that the board has at least 2x2 interior corners and positive square sizes.
func (b BoardSpec) Validate() error {
	if b.Rows < 2 || b.Cols < 2 {
		return errors.Errorf("board must have at least 2x2 interior corners, got %dx%d", b.Rows, b.Cols)
	}
	if b.SquareWidth <= 0 || b.SquareHeight <= 0 {
		return errors.Errorf("square size must be positive, got %gx%g", b.SquareWidth, b.SquareHeight)
	}
	return nil
}

// NumCorners is the number of interior corners seen in every image.
func (b BoardSpec) NumCorners() int {
	return b.Rows * b.Cols
}

// ObjectPoints returns the interior corners on the z=0 plane. Corner (r, c) is at
// (r*SquareWidth, c*SquareHeight, 0) and has index r*Cols + c, the order detectors emit.
func (b BoardSpec) ObjectPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, b.NumCorners())
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			pts = append(pts, r3.Vector{X: float64(r) * b.SquareWidth, Y: float64(c) * b.SquareHeight})
		}
	}
	return pts
}
