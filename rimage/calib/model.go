package calib

import (
	"image"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage/transform"
)

// IntrinsicModel is the camera matrix, with zero skew, and the distortion coefficients in
// (k1, k2, p1, p2, k3) order.
type IntrinsicModel struct {
	Fx         float64    `json:"fx"`
	Fy         float64    `json:"fy"`
	Cx         float64    `json:"cx"`
	Cy         float64    `json:"cy"`
	Distortion [5]float64 `json:"dist_coeffs"`
}

// CameraMatrix returns the 3x3 intrinsic matrix.
func (im IntrinsicModel) CameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		im.Fx, 0, im.Cx,
		0, im.Fy, im.Cy,
		0, 0, 1,
	})
}

// DistCoeffs returns the distortion coefficients in (k1, k2, p1, p2, k3) order.
func (im IntrinsicModel) DistCoeffs() [5]float64 {
	return im.Distortion
}

// PinholeIntrinsics returns the intrinsics for images of the given size.
func (im IntrinsicModel) PinholeIntrinsics(imageSize image.Point) *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  imageSize.X,
		Height: imageSize.Y,
		Fx:     im.Fx,
		Fy:     im.Fy,
		Ppx:    im.Cx,
		Ppy:    im.Cy,
	}
}

// PinholeModel returns the model as a pinhole camera with Brown-Conrady distortion.
func (im IntrinsicModel) PinholeModel(imageSize image.Point) *transform.PinholeCameraModel {
	return &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: im.PinholeIntrinsics(imageSize),
		Distortion:              transform.NewBrownConradyFromCoefficients(im.Distortion),
	}
}

// ExtrinsicPose maps board coordinates into the camera frame: p_cam = R*p_board + Translation.
// Rotation is an axis-angle vector whose norm is the angle in radians.
type ExtrinsicPose struct {
	Rotation    r3.Vector `json:"rvec"`
	Translation r3.Vector `json:"tvec"`
}

// RotationMatrix returns the pose rotation as a 3x3 matrix.
func (p ExtrinsicPose) RotationMatrix() *mat.Dense {
	return transform.RodriguesToMatrix(p.Rotation)
}
