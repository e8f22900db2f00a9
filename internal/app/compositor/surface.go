package compositor

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var errBadCorner = errors.New("corner radius does not fit region")

// Surface is the drawing target the composite frames are rendered on.
type Surface struct {
	img *image.RGBA
}

func NewSurface(w, h int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// Image returns the backing frame. Callers must copy it before the
// next redraw if they need to keep it.
func (s *Surface) Image() *image.RGBA { return s.img }

func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Black, image.Point{}, draw.Src)
}

// DrawFull scales src over the whole surface.
func (s *Surface) DrawFull(src image.Image) {
	xdraw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

// DrawOverlay renders src into region with a rounded-rect clip, border
// and a text label. When the rounded mask cannot be built the overlay
// degrades to a plain rectangle instead of failing.
func (s *Surface) DrawOverlay(src image.Image, region image.Rectangle, corner int, label string) {
	scaled := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	mask, err := roundedMask(region.Dx(), region.Dy(), corner)
	if err != nil {
		draw.Draw(s.img, region, scaled, image.Point{}, draw.Over)
	} else {
		draw.DrawMask(s.img, region, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	}

	s.strokeBorder(region, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	if label != "" {
		s.drawLabel(label, region)
	}
}

func (s *Surface) strokeBorder(r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		s.img.Set(x, r.Min.Y, c)
		s.img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		s.img.Set(r.Min.X, y, c)
		s.img.Set(r.Max.X-1, y, c)
	}
}

func (s *Surface) drawLabel(label string, region image.Rectangle) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  s.img,
		Src:  image.White,
		Face: face,
		Dot: fixed.P(
			region.Min.X+6,
			region.Max.Y-6,
		),
	}
	// Backing strip so the name stays readable over a bright frame.
	strip := image.Rect(region.Min.X+2, region.Max.Y-face.Height-6, region.Max.X-2, region.Max.Y-2)
	draw.Draw(s.img, strip, &image.Uniform{C: color.RGBA{A: 0x99}}, image.Point{}, draw.Over)
	d.DrawString(label)
}

// roundedMask builds an alpha mask with quarter-circle corners.
func roundedMask(w, h, r int) (*image.Alpha, error) {
	if r < 0 || 2*r > w || 2*r > h {
		return nil, errBadCorner
	}
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if insideRounded(x, y, w, h, r) {
				m.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
	return m, nil
}

func insideRounded(x, y, w, h, r int) bool {
	if r == 0 {
		return true
	}
	var cx, cy int
	switch {
	case x < r && y < r:
		cx, cy = r, r
	case x >= w-r && y < r:
		cx, cy = w-1-r, r
	case x < r && y >= h-r:
		cx, cy = r, h-1-r
	case x >= w-r && y >= h-r:
		cx, cy = w-1-r, h-1-r
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}
