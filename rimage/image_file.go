package rimage

import (
	"fmt"
	"image"
	// Decoders registered with the image package so that the loader can read them.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi" // register qoi
	_ "golang.org/x/image/bmp"  // register bmp
	_ "golang.org/x/image/tiff" // register tiff
	_ "golang.org/x/image/webp" // register webp
)

// ErrImageLoad is matched by every ImageLoadError.
var ErrImageLoad = errors.New("cannot load image")

// ImageLoadError reports that the image at Path could not be decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrImageLoad, e.Path, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrImageLoad.
func (e *ImageLoadError) Is(target error) bool {
	return target == ErrImageLoad
}

// ReadImageFromFile decodes the image at path. EXIF orientation is applied so that the corners
// are detected in the same frame the photo was taken in.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &ImageLoadError{Path: path, Err: errors.New("image is empty")}
	}
	return img, nil
}

// FileLoader loads calibration images from the local filesystem.
type FileLoader struct{}

// Load reads and decodes the image at path.
func (FileLoader) Load(path string) (image.Image, error) {
	return ReadImageFromFile(path)
}
