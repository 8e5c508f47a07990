package rimage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
}

func TestReadImageFromFile(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	src.Set(3, 2, color.NRGBA{255, 255, 255, 255})
	path := filepath.Join(dir, "board.png")
	writePNG(t, path, src)

	img, err := FileLoader{}.Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Pt(16, 8))

	gray := MakeGray(img)
	test.That(t, gray.GrayAt(3, 2).Y, test.ShouldEqual, 255)
	test.That(t, gray.GrayAt(4, 2).Y, test.ShouldEqual, 0)
	lum := GrayToFloat64(gray)
	r, c := lum.Dims()
	test.That(t, r, test.ShouldEqual, 8)
	test.That(t, c, test.ShouldEqual, 16)
	test.That(t, lum.At(2, 3), test.ShouldEqual, 255.)
}

func TestReadImageFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadImageFromFile(filepath.Join(dir, "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrImageLoad), test.ShouldBeTrue)
	var loadErr *ImageLoadError
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
	test.That(t, loadErr.Path, test.ShouldEqual, filepath.Join(dir, "missing.png"))

	garbage := filepath.Join(dir, "garbage.png")
	test.That(t, os.WriteFile(garbage, []byte("definitely not an image"), 0o600), test.ShouldBeNil)
	_, err = ReadImageFromFile(garbage)
	test.That(t, errors.Is(err, ErrImageLoad), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "garbage.png")
}

func TestSameImgSize(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 4, 4))
	b := image.NewGray(image.Rect(10, 10, 14, 14))
	c := image.NewGray(image.Rect(0, 0, 5, 4))
	test.That(t, SameImgSize(a, b), test.ShouldBeTrue)
	test.That(t, SameImgSize(a, c), test.ShouldBeFalse)
	test.That(t, MakeGray(b).Bounds().Min, test.ShouldResemble, image.Point{})
}
