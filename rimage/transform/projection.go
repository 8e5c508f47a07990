package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// ProjectPoints maps object points into pixel coordinates. Each point is rotated by the
// axis-angle vector rvec, translated by tvec, perspective divided, distorted and finally scaled
// by the intrinsics. A nil distortion projects through an ideal pinhole.
func ProjectPoints(
	objectPoints []r3.Vector,
	rvec, tvec r3.Vector,
	intrinsics *PinholeCameraIntrinsics,
	distortion Distorter,
) []r2.Point {
	out := make([]r2.Point, len(objectPoints))
	ProjectPointsInto(out, objectPoints, rvec, tvec, intrinsics, distortion)
	return out
}

// ProjectPointsInto is ProjectPoints writing into dst, which must be at least as long as
// objectPoints.
func ProjectPointsInto(
	dst []r2.Point,
	objectPoints []r3.Vector,
	rvec, tvec r3.Vector,
	intrinsics *PinholeCameraIntrinsics,
	distortion Distorter,
) {
	rot := RodriguesToMatrix(rvec)
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = rot.At(i, j)
		}
	}
	for i, p := range objectPoints {
		xc := r[0][0]*p.X + r[0][1]*p.Y + r[0][2]*p.Z + tvec.X
		yc := r[1][0]*p.X + r[1][1]*p.Y + r[1][2]*p.Z + tvec.Y
		zc := r[2][0]*p.X + r[2][1]*p.Y + r[2][2]*p.Z + tvec.Z
		x, y := xc/zc, yc/zc
		if distortion != nil {
			x, y = distortion.Transform(x, y)
		}
		dst[i] = r2.Point{X: intrinsics.Fx*x + intrinsics.Ppx, Y: intrinsics.Fy*y + intrinsics.Ppy}
	}
}
