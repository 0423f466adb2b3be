package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// Grid is a cell grid with named outputs, such as a *view.View.
type Grid interface {
	Rows() int
	Cols() int
	Output(row, col int, outputID string) (int32, error)
}

// Shades of rendered cells.
var (
	On      = color.Gray{Y: 0xff}
	Off     = color.Gray{Y: 0x00}
	Missing = color.Gray{Y: 0x40}
)

// ErrScale is returned by RenderPNG for a scale below one.
var ErrScale = errors.New("snapshot: scale must be positive")

// Render draws bit lane of output outputID of every cell of g, one pixel per
// cell. Cells without the output are drawn as Missing.
func Render(g Grid, outputID string, lane uint) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Cols(), g.Rows()))
	for row := range g.Rows() {
		for col := range g.Cols() {
			c := Missing
			if v, err := g.Output(row, col, outputID); err == nil {
				c = Off
				if uint32(v)>>(lane%32)&1 != 0 { //nolint:gosec // bit-preserving
					c = On
				}
			}
			img.SetGray(col, row, c)
		}
	}
	return img
}

// RenderPNG renders the low bit of output outputID of every cell of g as a
// PNG, with each cell scale pixels wide.
func RenderPNG(w io.Writer, g Grid, scale int, outputID string) error {
	if scale < 1 {
		return fmt.Errorf("%w: %d", ErrScale, scale)
	}
	src := Render(g, outputID, 0)
	img := src
	if scale > 1 {
		b := src.Bounds()
		img = image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		xdraw.NearestNeighbor.Scale(img, img.Bounds(), src, b, xdraw.Src, nil)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("snapshot: encode png: %w", err)
	}
	return nil
}
