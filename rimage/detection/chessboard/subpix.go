package chessboard

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcalib/rimage"
)

// SubpixConfiguration stores the stopping criteria of the corner refinement.
type SubpixConfiguration struct {
	MaxIterations int     `json:"max-iterations"`
	Epsilon       float64 `json:"epsilon"` // stop once a corner moves less than this, in pixels
	// BlurSigma smooths the image before taking gradients. Unsmoothed edges alias when their
	// gradients are interpolated between pixels.
	BlurSigma float64 `json:"blur-sigma"`
}

// DefaultSubpixConf stores the default refinement parameters.
var DefaultSubpixConf = SubpixConfiguration{
	MaxIterations: 40,
	Epsilon:       0.01,
	BlurSigma:     1.5,
}

// SubpixRefiner moves corners to the point where the image gradients in a window around them
// are orthogonal to the vectors pointing from the corner.
type SubpixRefiner struct {
	conf SubpixConfiguration
}

// NewSubpixRefiner returns a refiner with the given stopping criteria.
func NewSubpixRefiner(conf SubpixConfiguration) *SubpixRefiner {
	return &SubpixRefiner{conf: conf}
}

// RefineCorners refines every corner within window, given as the full (width, height) of the
// search region. Corners that drift out of their window keep their initial position. The output
// has the same order as corners.
func (sr *SubpixRefiner) RefineCorners(gray *image.Gray, corners []r2.Point, window image.Point) ([]r2.Point, error) {
	if window.X < 3 || window.Y < 3 {
		return nil, errors.Errorf("sub-pixel window must be at least 3x3, got %dx%d", window.X, window.Y)
	}
	lum := rimage.GaussianBlurFloat64(rimage.GrayToFloat64(gray), sr.conf.BlurSigma)
	gx, gy, err := centralGradients(lum)
	if err != nil {
		return nil, err
	}
	halfW, halfH := window.X/2, window.Y/2

	// The weights only depend on the offset within the window.
	weights := mat.NewDense(2*halfH+1, 2*halfW+1, nil)
	for j := -halfH; j <= halfH; j++ {
		for i := -halfW; i <= halfW; i++ {
			e := float64(i*i)/float64(halfW*halfW) + float64(j*j)/float64(halfH*halfH)
			weights.Set(j+halfH, i+halfW, math.Exp(-e))
		}
	}

	refined := make([]r2.Point, len(corners))
	for k, start := range corners {
		q := start
		for iter := 0; iter < sr.conf.MaxIterations; iter++ {
			var a, b, c, bx, by float64
			for j := -halfH; j <= halfH; j++ {
				for i := -halfW; i <= halfW; i++ {
					px, py := q.X+float64(i), q.Y+float64(j)
					dx := rimage.BilinearInterpolation(gx, px, py)
					dy := rimage.BilinearInterpolation(gy, px, py)
					w := weights.At(j+halfH, i+halfW)
					gxx, gxy, gyy := dx*dx*w, dx*dy*w, dy*dy*w
					a += gxx
					b += gxy
					c += gyy
					bx += gxx*px + gxy*py
					by += gxy*px + gyy*py
				}
			}
			det := a*c - b*b
			if math.Abs(det) <= 1e-12*(a*c+1e-300) {
				break
			}
			next := r2.Point{X: (c*bx - b*by) / det, Y: (a*by - b*bx) / det}
			moved := next.Sub(q).Norm()
			q = next
			if moved < sr.conf.Epsilon {
				break
			}
		}
		if math.Abs(q.X-start.X) > float64(halfW) || math.Abs(q.Y-start.Y) > float64(halfH) {
			q = start
		}
		refined[k] = q
	}
	return refined, nil
}

// centralGradients returns the x and y derivatives of m by central differences.
func centralGradients(m *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	kx, err := rimage.NewKernel([][]float64{{-0.5, 0, 0.5}})
	if err != nil {
		return nil, nil, err
	}
	ky, err := rimage.NewKernel([][]float64{{-0.5}, {0}, {0.5}})
	if err != nil {
		return nil, nil, err
	}
	gx, err := rimage.ConvolveGrayFloat64(m, kx)
	if err != nil {
		return nil, nil, err
	}
	gy, err := rimage.ConvolveGrayFloat64(m, ky)
	if err != nil {
		return nil, nil, err
	}
	return gx, gy, nil
}
