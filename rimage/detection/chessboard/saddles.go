package chessboard

import (
	"image"
	"sort"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage"
	"go.viam.com/camcalib/utils"
)

// SaddleConfiguration stores the parameters to process the Hessian determinant image into saddle points.
type SaddleConfiguration struct {
	BlurSigma     float64 `json:"blur-sigma"` // gaussian blur applied before differentiation
	ScoreMin      float64 `json:"score-min"`  // minimum saddle score, on luminance scaled to [0, 1]
	NMSWindowSize int     `json:"win-size"`   // half size of the non-maximum suppression window
}

// DefaultSaddleConf stores the default parameters for saddle detection.
var DefaultSaddleConf = SaddleConfiguration{
	BlurSigma:     1.5,
	ScoreMin:      1e-5,
	NMSWindowSize: 5,
}

// Saddle is a local maximum of the saddle score.
type Saddle struct {
	Point image.Point
	// Offset is the sub-pixel position of the peak relative to Point, each coordinate in [-0.5, 0.5].
	OffsetX, OffsetY float64
	Score            float64
}

// computePixelWiseHessianDeterminant computes hessian components for each pixel and returns a *mat.Dense containing
// the value of the determinant of the Hessian for each pixel.
// The sign and value of the determinant of the Hessian gives location of saddle points.
func computePixelWiseHessianDeterminant(img *mat.Dense) (*mat.Dense, error) {
	nRows, nCols := img.Dims()
	sobelX := rimage.GetSobelX()
	sobelY := rimage.GetSobelY()
	gX, err := rimage.ConvolveGrayFloat64(img, &sobelX)
	if err != nil {
		return nil, err
	}
	gY, err := rimage.ConvolveGrayFloat64(img, &sobelY)
	if err != nil {
		return nil, err
	}
	gXX, err := rimage.ConvolveGrayFloat64(gX, &sobelX)
	if err != nil {
		return nil, err
	}
	gYY, err := rimage.ConvolveGrayFloat64(gY, &sobelY)
	if err != nil {
		return nil, err
	}
	gXY, err := rimage.ConvolveGrayFloat64(gX, &sobelY)
	if err != nil {
		return nil, err
	}
	m1 := mat.NewDense(nRows, nCols, nil)
	m2 := mat.NewDense(nRows, nCols, nil)
	out := mat.NewDense(nRows, nCols, nil)
	m1.MulElem(gXX, gYY)
	m2.MulElem(gXY, gXY)
	out.Sub(m1, m2)
	// Each Sobel pass scales the derivative by 8.
	out.Scale(1./(64*64), out)
	return out, nil
}

// SaddleMap returns the saddle score of every pixel of a luminance image with values in [0, 255].
// The score is the negated determinant of the Hessian of the blurred image, clamped at zero:
// checkerboard X-junctions have a strongly negative determinant.
func SaddleMap(lum *mat.Dense, conf *SaddleConfiguration) (*mat.Dense, error) {
	scaled := mat.NewDense(lum.RawMatrix().Rows, lum.RawMatrix().Cols, nil)
	scaled.Scale(1./255, lum)
	blurred := rimage.GaussianBlurFloat64(scaled, conf.BlurSigma)
	hessian, err := computePixelWiseHessianDeterminant(blurred)
	if err != nil {
		return nil, err
	}
	hessian.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return 0
		}
		return -v
	}, hessian)
	return hessian, nil
}

// NonMaxSuppression returns the local maxima of the score map above conf.ScoreMin, strongest first.
// A pixel survives if no other pixel within conf.NMSWindowSize in both directions scores
// higher. Ties go to the pixel that comes first in raster order.
func NonMaxSuppression(scores *mat.Dense, conf *SaddleConfiguration) []Saddle {
	h, w := scores.Dims()
	win := conf.NMSWindowSize
	keep := make([]bool, h*w)
	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		s := scores.At(y, x)
		if s <= conf.ScoreMin {
			return
		}
		for yy := utils.MaxInt(0, y-win); yy <= utils.MinInt(h-1, y+win); yy++ {
			for xx := utils.MaxInt(0, x-win); xx <= utils.MinInt(w-1, x+win); xx++ {
				other := scores.At(yy, xx)
				if other > s || (other == s && yy*w+xx < y*w+x) {
					return
				}
			}
		}
		keep[y*w+x] = true
	})

	var saddles []Saddle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !keep[y*w+x] {
				continue
			}
			saddle := Saddle{Point: image.Pt(x, y), Score: scores.At(y, x)}
			if x > 0 && x < w-1 {
				saddle.OffsetX = peakOffset(scores.At(y, x-1), saddle.Score, scores.At(y, x+1))
			}
			if y > 0 && y < h-1 {
				saddle.OffsetY = peakOffset(scores.At(y-1, x), saddle.Score, scores.At(y+1, x))
			}
			saddles = append(saddles, saddle)
		}
	}
	sort.SliceStable(saddles, func(i, j int) bool {
		return saddles[i].Score > saddles[j].Score
	})
	return saddles
}

// peakOffset fits a parabola through three samples and returns the offset of its apex from the
// middle sample.
func peakOffset(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom >= 0 {
		return 0
	}
	offset := 0.5 * (left - right) / denom
	if offset > 0.5 {
		return 0.5
	}
	if offset < -0.5 {
		return -0.5
	}
	return offset
}

// GetSaddlePoints runs the saddle detection on a luminance image and returns the saddle points,
// strongest first.
func GetSaddlePoints(lum *mat.Dense, conf *SaddleConfiguration) ([]Saddle, error) {
	scores, err := SaddleMap(lum, conf)
	if err != nil {
		return nil, err
	}
	return NonMaxSuppression(scores, conf), nil
}
