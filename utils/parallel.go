package utils

import (
	"image"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachPixel loops through the image and calls f for each [x, y] position.
// Rows are split into ParallelFactor bands and each band runs in its own goroutine. f must be
// safe to call concurrently for distinct positions.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	bands := ParallelFactor
	if bands > size.Y {
		bands = size.Y
	}
	if bands <= 1 {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				f(x, y)
			}
		}
		return
	}

	var waitGroup sync.WaitGroup
	waitGroup.Add(bands)
	for i := 0; i < bands; i++ {
		startY := i * size.Y / bands
		endY := (i + 1) * size.Y / bands
		utils.PanicCapturingGo(func() {
			defer waitGroup.Done()
			for y := startY; y < endY; y++ {
				for x := 0; x < size.X; x++ {
					f(x, y)
				}
			}
		})
	}
	waitGroup.Wait()
}
