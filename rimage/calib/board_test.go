package calib

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBoardObjectPoints(t *testing.T) {
	board := BoardSpec{Rows: 3, Cols: 2, SquareWidth: 20, SquareHeight: 10}
	test.That(t, board.Validate(), test.ShouldBeNil)
	test.That(t, board.NumCorners(), test.ShouldEqual, 6)

	pts := board.ObjectPoints()
	test.That(t, pts, test.ShouldResemble, []r3.Vector{
		{X: 0, Y: 0}, {X: 0, Y: 10},
		{X: 20, Y: 0}, {X: 20, Y: 10},
		{X: 40, Y: 0}, {X: 40, Y: 10},
	})

	// the default board matches a 6x5 board of 20 unit squares
	def := DefaultBoardSpec.ObjectPoints()
	test.That(t, len(def), test.ShouldEqual, 30)
	test.That(t, def[29], test.ShouldResemble, r3.Vector{X: 100, Y: 80})
	for _, p := range def {
		test.That(t, p.Z, test.ShouldEqual, 0)
	}
}

func TestBoardValidate(t *testing.T) {
	test.That(t, BoardSpec{Rows: 1, Cols: 5, SquareWidth: 1, SquareHeight: 1}.Validate(),
		test.ShouldBeError, "board must have at least 2x2 interior corners, got 1x5")
	test.That(t, BoardSpec{Rows: 2, Cols: 2, SquareWidth: 0, SquareHeight: 1}.Validate(),
		test.ShouldBeError, "square size must be positive, got 0x1")
	test.That(t, DefaultBoardSpec.Validate(), test.ShouldBeNil)
}
