package calib

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage"
)

// OverlaySink writes every image with its detected corners drawn on top to a directory, as
// <index>_<basename>.png.
type OverlaySink struct {
	dir    string
	logger logging.Logger
}

// NewOverlaySink creates dir if needed and returns a sink writing into it.
func NewOverlaySink(dir string, logger logging.Logger) (*OverlaySink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "cannot create debug directory")
	}
	return &OverlaySink{dir: dir, logger: logger}, nil
}

// ShowCorners saves the overlay of one image.
func (s *OverlaySink) ShowCorners(index int, path string, img image.Image, board BoardSpec, corners []r2.Point) error {
	overlay := rimage.DrawChessboardCorners(img, corners, board.Cols)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(s.dir, fmt.Sprintf("%d_%s.png", index, base))
	if err := gg.SavePNG(out, overlay); err != nil {
		return errors.Wrapf(err, "cannot save overlay of %s", path)
	}
	s.logger.Debugw("saved corner overlay", "path", path, "overlay", out)
	return nil
}
