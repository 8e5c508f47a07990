//go:build !withcv

package main

import (
	"github.com/pkg/errors"

	"go.viam.com/camcalib/logging"
	"go.viam.com/camcalib/rimage/calib"
)

func newCollaborators(detector string, logger logging.Logger) (calib.Collaborators, error) {
	if detector == calib.DetectorOpenCV {
		return calib.Collaborators{}, errors.New("the opencv detector needs a build with the withcv tag")
	}
	return saddleCollaborators(logger), nil
}
