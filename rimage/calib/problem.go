package calib

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage/transform"
)

// Layout of the full parameter vector: the intrinsics, then rvec and tvec of every view.
const (
	paramFx = iota
	paramFy
	paramCx
	paramCy
	paramK1
	paramK2
	paramP1
	paramP2
	paramK3
	numIntrinsicParams
)

const paramsPerView = 6

// reprojectionProblem is the least squares problem over the free parameters. Fixed parameters
// keep the value they have in full.
type reprojectionProblem struct {
	ds        *CalibrationDataset
	full      []float64
	free      []int
	numPoints int
}

func newReprojectionProblem(
	ds *CalibrationDataset,
	im IntrinsicModel,
	poses []ExtrinsicPose,
	opts SolverOptions,
) *reprojectionProblem {
	full := make([]float64, numIntrinsicParams+paramsPerView*len(poses))
	full[paramFx], full[paramFy], full[paramCx], full[paramCy] = im.Fx, im.Fy, im.Cx, im.Cy
	copy(full[paramK1:numIntrinsicParams], im.Distortion[:])
	for i, pose := range poses {
		off := numIntrinsicParams + paramsPerView*i
		full[off], full[off+1], full[off+2] = pose.Rotation.X, pose.Rotation.Y, pose.Rotation.Z
		full[off+3], full[off+4], full[off+5] = pose.Translation.X, pose.Translation.Y, pose.Translation.Z
	}

	fixed := map[int]bool{}
	if opts.FixPrincipalPoint {
		fixed[paramCx], fixed[paramCy] = true, true
	}
	if opts.ZeroTangentDist {
		full[paramP1], full[paramP2] = 0, 0
		fixed[paramP1], fixed[paramP2] = true, true
	}
	if opts.FixK3 {
		fixed[paramK3] = true
	}
	free := make([]int, 0, len(full))
	for i := range full {
		if !fixed[i] {
			free = append(free, i)
		}
	}

	numPoints := 0
	for _, count := range ds.PointCounts {
		numPoints += count
	}
	return &reprojectionProblem{ds: ds, full: full, free: free, numPoints: numPoints}
}

// initial returns the starting values of the free parameters.
func (p *reprojectionProblem) initial() []float64 {
	x := make([]float64, len(p.free))
	for i, idx := range p.free {
		x[i] = p.full[idx]
	}
	return x
}

// expand returns the full parameter vector for the free parameters x.
func (p *reprojectionProblem) expand(x []float64) []float64 {
	full := make([]float64, len(p.full))
	copy(full, p.full)
	for i, idx := range p.free {
		full[idx] = x[i]
	}
	return full
}

// numResiduals is twice the number of points.
func (p *reprojectionProblem) numResiduals() int {
	return 2 * p.numPoints
}

// unpack splits the free parameters x into the camera model and the view poses.
func (p *reprojectionProblem) unpack(x []float64) (IntrinsicModel, []ExtrinsicPose) {
	full := p.expand(x)
	im := IntrinsicModel{Fx: full[paramFx], Fy: full[paramFy], Cx: full[paramCx], Cy: full[paramCy]}
	copy(im.Distortion[:], full[paramK1:numIntrinsicParams])
	poses := make([]ExtrinsicPose, p.ds.Len())
	for i := range poses {
		off := numIntrinsicParams + paramsPerView*i
		poses[i] = ExtrinsicPose{
			Rotation:    r3.Vector{X: full[off], Y: full[off+1], Z: full[off+2]},
			Translation: r3.Vector{X: full[off+3], Y: full[off+4], Z: full[off+5]},
		}
	}
	return im, poses
}

// residuals writes projected minus detected coordinates, x then y for every point, into dst. It
// is safe for concurrent use.
func (p *reprojectionProblem) residuals(dst, x []float64) {
	im, poses := p.unpack(x)
	intr := im.PinholeIntrinsics(p.ds.ImageSize)
	distortion := transform.NewBrownConradyFromCoefficients(im.Distortion)

	k := 0
	var buf []r2.Point
	for i, pose := range poses {
		detected := p.ds.ImagePoints[i]
		if cap(buf) < len(detected) {
			buf = make([]r2.Point, len(detected))
		}
		buf = buf[:len(detected)]
		transform.ProjectPointsInto(buf, p.ds.ObjectPoints[i], pose.Rotation, pose.Translation, intr, distortion)
		for j, d := range detected {
			dst[k] = buf[j].X - d.X
			dst[k+1] = buf[j].Y - d.Y
			k += 2
		}
	}
}

// cost is the sum of squared residuals.
func (p *reprojectionProblem) cost(r []float64) float64 {
	return floats.Dot(r, r)
}

// jacobian fills dst, of size numResiduals x len(x), by central differences.
func (p *reprojectionProblem) jacobian(dst *mat.Dense, x []float64) {
	fd.Jacobian(dst, p.residuals, x, &fd.JacobianSettings{
		Formula:    fd.Central,
		Concurrent: true,
	})
}
