package testutils

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
	"go.viam.com/utils"
)

// WritePNG encodes img into dir/name and fails the test if it cannot.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer utils.UncheckedErrorFunc(f.Close)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	return path
}

// WriteImageList writes one path per line into dir/name and returns the list path.
func WriteImageList(t *testing.T, dir, name string, paths []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(strings.Join(paths, "\n")+"\n"), 0o600)
	test.That(t, err, test.ShouldBeNil)
	return path
}
