package rimage

import (
	"image"
	"image/color"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// rowColors cycles through the board rows so that the raster order is visible on the overlay.
var rowColors = []color.Color{
	color.NRGBA{255, 0, 0, 255},
	color.NRGBA{255, 128, 0, 255},
	color.NRGBA{200, 200, 0, 255},
	color.NRGBA{0, 200, 0, 255},
	color.NRGBA{0, 200, 200, 255},
	color.NRGBA{0, 0, 255, 255},
	color.NRGBA{255, 0, 255, 255},
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawChessboardCorners returns a copy of img with the corners drawn on top. Corners are in
// raster order with cols corners per row: consecutive corners are joined by a line, each row gets
// its own color and every corner is labeled with its index. The input image is not modified.
func DrawChessboardCorners(img image.Image, corners []r2.Point, cols int) image.Image {
	dc := gg.NewContextForImage(img)
	if cols <= 0 {
		cols = len(corners)
	}
	radius := float64(dc.Width()+dc.Height()) / 400
	if radius < 3 {
		radius = 3
	}

	for i, p := range corners {
		c := rowColors[(i/cols)%len(rowColors)]
		if i > 0 {
			prev := corners[i-1]
			dc.SetColor(c)
			dc.SetLineWidth(1)
			dc.DrawLine(prev.X, prev.Y, p.X, p.Y)
			dc.Stroke()
		}
		dc.SetColor(c)
		dc.SetLineWidth(2)
		dc.DrawCircle(p.X, p.Y, radius)
		dc.Stroke()
		DrawString(dc, strconv.Itoa(i), image.Pt(int(p.X+radius), int(p.Y+radius)), c, 2*radius+4)
	}
	return dc.Image()
}
