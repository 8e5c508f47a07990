package testutils

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage/transform"
	"go.viam.com/camcalib/utils"
)

const (
	darkSquare  = 30
	lightSquare = 220
)

// CheckerboardScene describes a camera looking at a planar checkerboard. Rows and Cols count the
// interior corners. Interior corner (r, c) sits at (r*SquareWidth, c*SquareHeight, 0) on the board.
type CheckerboardScene struct {
	Rows, Cols                int
	SquareWidth, SquareHeight float64
	Intrinsics                *transform.PinholeCameraIntrinsics
	Distortion                *transform.BrownConrady
	// Supersample is the square root of the number of samples per pixel. Zero means 8.
	Supersample int
}

// SyntheticView is the pose of the board in the camera frame.
type SyntheticView struct {
	Rotation    r3.Vector
	Translation r3.Vector
}

// NewDefaultScene returns a 6x5 board of 20 unit squares seen by a 480x360 camera.
func NewDefaultScene() *CheckerboardScene {
	return &CheckerboardScene{
		Rows:         6,
		Cols:         5,
		SquareWidth:  20,
		SquareHeight: 20,
		Intrinsics: &transform.PinholeCameraIntrinsics{
			Width:  480,
			Height: 360,
			Fx:     420,
			Fy:     410,
			Ppx:    243,
			Ppy:    178,
		},
	}
}

// ObjectPoints returns the interior corners in raster order.
func (s *CheckerboardScene) ObjectPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, s.Rows*s.Cols)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			pts = append(pts, r3.Vector{X: float64(r) * s.SquareWidth, Y: float64(c) * s.SquareHeight})
		}
	}
	return pts
}

// ImageSize returns the rendered image size.
func (s *CheckerboardScene) ImageSize() image.Point {
	return image.Pt(s.Intrinsics.Width, s.Intrinsics.Height)
}

// View builds a pose that tilts the board by tilt (an axis-angle vector applied in the camera
// frame) and puts its center at the given distance, shifted by (shiftX, shiftY). The untilted
// board has its row axis pointing down the image and its column axis pointing right, so corner
// (0, 0) is the top left one.
func (s *CheckerboardScene) View(tilt r3.Vector, distance, shiftX, shiftY float64) SyntheticView {
	// Board x maps to camera y, board y to camera x.
	base := r3.Vector{X: 1, Y: 1}.Normalize().Mul(math.Pi)
	rot := composeRotations(tilt, base)
	rvec := transform.MatrixToRodrigues(rot)

	center := r3.Vector{
		X: float64(s.Rows-1) * s.SquareWidth / 2,
		Y: float64(s.Cols-1) * s.SquareHeight / 2,
	}
	rotated := transform.RotatePoint(rvec, center)
	tvec := r3.Vector{X: shiftX, Y: shiftY, Z: distance}.Sub(rotated)
	return SyntheticView{Rotation: rvec, Translation: tvec}
}

// DefaultViews returns a set of well conditioned poses for calibration tests.
func (s *CheckerboardScene) DefaultViews() []SyntheticView {
	return []SyntheticView{
		s.View(r3.Vector{X: 0.35}, 300, 0, 0),
		s.View(r3.Vector{Y: 0.4}, 320, 10, -5),
		s.View(r3.Vector{X: -0.3, Y: 0.25}, 310, -15, 5),
		s.View(r3.Vector{X: 0.2, Y: -0.35, Z: 0.1}, 290, 5, 10),
		s.View(r3.Vector{X: -0.25, Y: -0.2, Z: -0.1}, 330, -10, -10),
	}
}

// Project returns the exact image positions of the interior corners for a view.
func (s *CheckerboardScene) Project(view SyntheticView) []r2.Point {
	var distortion transform.Distorter
	if s.Distortion != nil {
		distortion = s.Distortion
	}
	return transform.ProjectPoints(s.ObjectPoints(), view.Rotation, view.Translation, s.Intrinsics, distortion)
}

// Render draws the board as seen from view. Pixel centers are at integer coordinates, matching
// Project. Everything off the board is light.
//
// Each pixel averages n*n samples placed on a rook lattice, so every sample has its own x and
// y offset. A regular n x n grid would snap edges close to the image axes to 1/n pixel steps.
func (s *CheckerboardScene) Render(view SyntheticView) *image.Gray {
	size := s.ImageSize()
	img := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	n := s.Supersample
	if n <= 0 {
		n = 8
	}
	offsets := rookLattice(n * n)

	rot := transform.RodriguesToMatrix(view.Rotation)
	// Rows of rt are the columns of rot.
	var rt [3]r3.Vector
	for i := 0; i < 3; i++ {
		rt[i] = r3.Vector{X: rot.At(0, i), Y: rot.At(1, i), Z: rot.At(2, i)}
	}
	toBoard := func(v r3.Vector) r3.Vector {
		return r3.Vector{X: rt[0].Dot(v), Y: rt[1].Dot(v), Z: rt[2].Dot(v)}
	}
	origin := toBoard(view.Translation)

	utils.ParallelForEachPixel(size, func(x, y int) {
		var sum float64
		for _, o := range offsets {
			sum += s.sample(float64(x)+o.X, float64(y)+o.Y, toBoard, origin)
		}
		img.SetGray(x, y, color.Gray{Y: uint8(math.Round(sum / float64(len(offsets))))})
	})
	return img
}

// sample returns the brightness of the board point seen through pixel (u, v).
func (s *CheckerboardScene) sample(u, v float64, toBoard func(r3.Vector) r3.Vector, origin r3.Vector) float64 {
	xn := (u - s.Intrinsics.Ppx) / s.Intrinsics.Fx
	yn := (v - s.Intrinsics.Ppy) / s.Intrinsics.Fy
	if s.Distortion != nil {
		xn, yn = s.Distortion.Undistort(xn, yn)
	}
	ray := toBoard(r3.Vector{X: xn, Y: yn, Z: 1})
	if math.Abs(ray.Z) < 1e-12 {
		return lightSquare
	}
	depth := origin.Z / ray.Z
	if depth <= 0 {
		return lightSquare
	}
	hit := ray.Mul(depth).Sub(origin)

	i := int(math.Floor(hit.X / s.SquareWidth))
	j := int(math.Floor(hit.Y / s.SquareHeight))
	if i < -1 || i >= s.Rows || j < -1 || j >= s.Cols {
		return lightSquare
	}
	if (i+j)&1 == 0 {
		return darkSquare
	}
	return lightSquare
}

// rookLattice returns n sample offsets in [-0.5, 0.5)^2. Sample k sits in column k and in row
// k*m mod n, where m is coprime with n and close to n divided by the golden ratio.
func rookLattice(n int) []r2.Point {
	m := utils.MaxInt(1, int(math.Round(float64(n)*(math.Sqrt(5)-1)/2)))
	for m > 1 && gcd(m, n) != 1 {
		m--
	}
	offsets := make([]r2.Point, n)
	for k := range offsets {
		offsets[k] = r2.Point{
			X: (float64(k)+0.5)/float64(n) - 0.5,
			Y: (float64(k*m%n)+0.5)/float64(n) - 0.5,
		}
	}
	return offsets
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// composeRotations returns the matrix of the rotation a applied after b.
func composeRotations(a, b r3.Vector) *mat.Dense {
	var out mat.Dense
	out.Mul(transform.RodriguesToMatrix(a), transform.RodriguesToMatrix(b))
	return &out
}
