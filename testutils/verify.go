package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the tests of a package and fails if goroutines outlive them.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m)
}
