package calib

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ReadImageList reads a newline separated list of image paths. Surrounding whitespace is trimmed
// and blank lines are ignored. The order of the file is kept.
func ReadImageList(path string) ([]string, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read image list")
	}
	lines := strings.Split(string(data), "\n")
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	}), nil
}
