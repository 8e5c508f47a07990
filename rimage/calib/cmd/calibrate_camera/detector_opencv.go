//go:build withcv

package main

import (
	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/calib"
	"go.viam.com/camcalib/rimage/detection/chessboard"
)

func newCollaborators(detector string, logger logging.Logger) (calib.Collaborators, error) {
	if detector == calib.DetectorOpenCV {
		return calib.Collaborators{
			Detector: chessboard.NewOpenCVDetector(),
			Refiner:  chessboard.NewOpenCVSubpixRefiner(chessboard.DefaultSubpixConf),
		}, nil
	}
	return saddleCollaborators(logger), nil
}
