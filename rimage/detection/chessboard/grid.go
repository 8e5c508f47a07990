package chessboard

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/camcalib/rimage/transform"
)

// GridConfiguration stores the tolerances used to snap saddle points onto the board grid.
type GridConfiguration struct {
	// InitialTolerance is the largest distance, in grid cells, between a point mapped through the
	// four corner homography and its nearest grid node.
	InitialTolerance float64 `json:"initial-tolerance"`
	// RefineTolerance is the same distance once the homography is refit on all points.
	RefineTolerance float64 `json:"refine-tolerance"`
	// TieDistance is the distance in pixels below which two candidate origins are equivalent.
	TieDistance float64 `json:"tie-distance"`
}

// DefaultGridConf stores the default grid assembly parameters.
var DefaultGridConf = GridConfiguration{
	InitialTolerance: 0.3,
	RefineTolerance:  0.25,
	TieDistance:      1,
}

// ChessGrid is a set of saddle points arranged into a rows x cols grid.
type ChessGrid struct {
	Rows, Cols int
	// Corners holds the points in raster order: index r*Cols + c.
	Corners []r2.Point
	// Homography maps image points to (col, row) grid coordinates.
	Homography *transform.Homography
}

// AssembleGrid orders points, which must hold exactly rows*cols saddle points, into a grid. The
// first corner is the one closest to the top left of the image and the column index grows along
// the board edge that points most to the right.
func AssembleGrid(points []r2.Point, rows, cols int, conf *GridConfiguration) (*ChessGrid, error) {
	n := rows * cols
	if len(points) != n {
		return nil, errors.Errorf("expected %d points, got %d", n, len(points))
	}
	hull := convexHull(points)
	if len(hull) < 4 {
		return nil, errors.Wrap(ErrNotFound, "saddle points do not span an area")
	}
	quad := maxAreaQuadrilateral(points, hull)

	gridCorners := []r2.Point{
		{X: 0, Y: 0},
		{X: float64(cols - 1), Y: 0},
		{X: float64(cols - 1), Y: float64(rows - 1)},
		{X: 0, Y: float64(rows - 1)},
	}

	var candidates []*ChessGrid
	for start := 0; start < 4; start++ {
		for _, dir := range []int{1, -1} {
			src := make([]r2.Point, 4)
			for i := range src {
				src[i] = points[quad[((start+dir*i)%4+4)%4]]
			}
			grid, ok := fitGrid(points, src, gridCorners, rows, cols, conf)
			if ok {
				candidates = append(candidates, grid)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, errors.Wrap(ErrNotFound, "saddle points do not form a grid")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		oi, oj := candidates[i].Corners[0], candidates[j].Corners[0]
		si, sj := oi.X+oi.Y, oj.X+oj.Y
		if math.Abs(si-sj) > conf.TieDistance {
			return si < sj
		}
		return columnStep(candidates[i]) > columnStep(candidates[j])
	})
	return candidates[0], nil
}

// columnStep is the horizontal image displacement between the first two corners.
func columnStep(grid *ChessGrid) float64 {
	return grid.Corners[1].X - grid.Corners[0].X
}

// fitGrid maps the four image corners in src onto the grid corners and tries to place every
// point on a distinct grid node.
func fitGrid(points, src, gridCorners []r2.Point, rows, cols int, conf *GridConfiguration) (*ChessGrid, bool) {
	h, err := transform.EstimateHomography(src, gridCorners)
	if err != nil {
		return nil, false
	}
	slots, ok := assignNodes(points, h, rows, cols, conf.InitialTolerance)
	if !ok {
		return nil, false
	}

	gridPts := make([]r2.Point, len(points))
	for i, slot := range slots {
		gridPts[i] = r2.Point{X: float64(slot % cols), Y: float64(slot / cols)}
	}
	h, err = transform.EstimateHomography(points, gridPts)
	if err != nil {
		return nil, false
	}
	slots, ok = assignNodes(points, h, rows, cols, conf.RefineTolerance)
	if !ok {
		return nil, false
	}

	corners := make([]r2.Point, len(points))
	for i, slot := range slots {
		corners[slot] = points[i]
	}
	return &ChessGrid{Rows: rows, Cols: cols, Corners: corners, Homography: h}, true
}

// assignNodes returns the raster slot of every point, or false if a point is not within tol of a
// node or two points share a node.
func assignNodes(points []r2.Point, h *transform.Homography, rows, cols int, tol float64) ([]int, bool) {
	taken := make([]bool, rows*cols)
	slots := make([]int, len(points))
	for i, pt := range points {
		g := h.Apply(pt)
		c, r := math.Round(g.X), math.Round(g.Y)
		if math.Abs(g.X-c) > tol || math.Abs(g.Y-r) > tol {
			return nil, false
		}
		if c < 0 || r < 0 || int(c) >= cols || int(r) >= rows {
			return nil, false
		}
		slot := int(r)*cols + int(c)
		if taken[slot] {
			return nil, false
		}
		taken[slot] = true
		slots[i] = slot
	}
	return slots, true
}

func cross(o, a, b r2.Point) float64 {
	return a.Sub(o).Cross(b.Sub(o))
}

// convexHull returns the indices of the hull vertices in counter-clockwise order, dropping
// collinear points. It uses Andrew's monotone chain.
func convexHull(points []r2.Point) []int {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := points[idx[i]], points[idx[j]]
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	if len(idx) < 3 {
		return idx
	}

	hull := make([]int, 0, 2*len(idx))
	for _, i := range idx {
		for len(hull) >= 2 && cross(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	lower := len(hull) + 1
	for k := len(idx) - 2; k >= 0; k-- {
		i := idx[k]
		for len(hull) >= lower && cross(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	return hull[:len(hull)-1]
}

// maxAreaQuadrilateral returns the four hull vertices, in hull order, enclosing the largest area.
func maxAreaQuadrilateral(points []r2.Point, hull []int) [4]int {
	best := [4]int{hull[0], hull[1], hull[2], hull[3]}
	bestArea := -1.
	h := len(hull)
	for a := 0; a < h; a++ {
		for b := a + 1; b < h; b++ {
			for c := b + 1; c < h; c++ {
				for d := c + 1; d < h; d++ {
					pa, pb, pc, pd := points[hull[a]], points[hull[b]], points[hull[c]], points[hull[d]]
					// Shoelace formula over the diagonals.
					area := math.Abs(pc.Sub(pa).Cross(pd.Sub(pb))) / 2
					if area > bestArea {
						bestArea = area
						best = [4]int{hull[a], hull[b], hull[c], hull[d]}
					}
				}
			}
		}
	}
	return best
}
