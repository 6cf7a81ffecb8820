// Package validate checks the input images before any configuration is built.
package validate

import (
	"nordic/internal/fsutil"
	"nordic/internal/models"
)

// Inputs confirms that the magnitude image and, when given, the phase image
// exist as regular files. It reports whether the run is magnitude-only, which is the case
// exactly when no phase path was supplied. Files are stat'ed, never opened.
func Inputs(fsys fsutil.FileSystem, magnitude, phase string) (magnitudeOnly bool, err error) {
	if magnitude == "" {
		return false, models.Errorf(models.ErrInputNotFound, "no input magnitude image given")
	}
	if !fsutil.IsRegular(fsys, magnitude) {
		return false, models.Errorf(models.ErrInputNotFound, "input magnitude image file not found: %s", magnitude)
	}

	if phase == "" {
		return true, nil
	}
	if !fsutil.IsRegular(fsys, phase) {
		return false, models.Errorf(models.ErrInputNotFound, "input phase image file not found: %s", phase)
	}
	return false, nil
}

// Request runs Inputs on the paths of req
func Request(fsys fsutil.FileSystem, req models.RunRequest) (bool, error) {
	return Inputs(fsys, req.MagnitudePath, req.PhasePath)
}
