package transform

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPinholeCameraIntrinsics(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 800, Fy: 810, Ppx: 320, Ppy: 240}
	test.That(t, intrinsics.CheckValid(), test.ShouldBeNil)

	k := intrinsics.GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, 800.)
	test.That(t, k.At(1, 1), test.ShouldEqual, 810.)
	test.That(t, k.At(0, 2), test.ShouldEqual, 320.)
	test.That(t, k.At(1, 2), test.ShouldEqual, 240.)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.)
	test.That(t, k.At(0, 1), test.ShouldEqual, 0.)

	u, v := intrinsics.PointToPixel(0.1, -0.05, 2)
	test.That(t, u, test.ShouldAlmostEqual, 360.)
	test.That(t, v, test.ShouldAlmostEqual, 219.75)
	x, y, z := intrinsics.PixelToPoint(u, v, 2)
	test.That(t, x, test.ShouldAlmostEqual, 0.1)
	test.That(t, y, test.ShouldAlmostEqual, -0.05)
	test.That(t, z, test.ShouldEqual, 2.)

	for _, bad := range []*PinholeCameraIntrinsics{
		nil,
		{Width: 0, Height: 480, Fx: 1, Fy: 1},
		{Width: 640, Height: 480, Fx: -1, Fy: 1},
		{Width: 640, Height: 480, Fx: 1, Fy: 0},
		{Width: 640, Height: 480, Fx: 1, Fy: 1, Ppx: -3},
	} {
		test.That(t, errors.Is(bad.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	}
}

func TestPinholeCameraModelJSON(t *testing.T) {
	model := &PinholeCameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 800, Fy: 800, Ppx: 320, Ppy: 240},
		Distortion:              NewBrownConradyFromCoefficients([5]float64{-0.1, 0.02, 0, 0, 0}),
	}
	test.That(t, model.CheckValid(), test.ShouldBeNil)

	data, err := json.Marshal(model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"distortion_type":"brown_conrady"`)
	test.That(t, string(data), test.ShouldContainSubstring, `"rk1":-0.1`)

	var back PinholeCameraModel
	test.That(t, json.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, back.PinholeCameraIntrinsics, test.ShouldResemble, model.PinholeCameraIntrinsics)
	test.That(t, back.Distortion.Parameters(), test.ShouldResemble, model.Distortion.Parameters())

	// Intrinsics can be read back from the model document or from a bare object.
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	test.That(t, os.WriteFile(modelPath, data, 0o600), test.ShouldBeNil)
	intrinsics, err := NewPinholeCameraIntrinsicsFromJSONFile(modelPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics, test.ShouldResemble, model.PinholeCameraIntrinsics)

	barePath := filepath.Join(dir, "bare.json")
	bare := `{"width_px": 1280, "height_px": 720, "fx": 900, "fy": 901, "ppx": 640, "ppy": 360}`
	test.That(t, os.WriteFile(barePath, []byte(bare), 0o600), test.ShouldBeNil)
	intrinsics, err = NewPinholeCameraIntrinsicsFromJSONFile(barePath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics.Fy, test.ShouldEqual, 901.)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	// The distortion map and point projection agree.
	pt := r3.Vector{X: 0.2, Y: 0.1, Z: 1}
	projected := model.ProjectPoint(pt)
	u, v := model.DistortionMap()(800*0.2+320, 800*0.1+240)
	test.That(t, projected.X, test.ShouldAlmostEqual, u, 1e-9)
	test.That(t, projected.Y, test.ShouldAlmostEqual, v, 1e-9)
}
