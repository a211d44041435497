package media

import (
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// coverLineWidth is the wrap width of the title, in characters
const coverLineWidth = 28

// writeCoverPNG writes the title card used when no scene stills are rendered:
// the niche, a blank line and the wrapped title, centred in gold.
func writeCoverPNG(path string, w, h int, niche, title string) error {
	img := solidImage(w, h, coverColor)
	drawCentered(img, coverLines(niche, title), coverTextColor)
	return writePNG(path, img)
}

func coverLines(niche, title string) []string {
	var lines []string
	if n := strings.TrimSpace(niche); n != "" {
		lines = append(lines, strings.ToUpper(n), "")
	}
	return append(lines, wrapWords(title, coverLineWidth)...)
}

func wrapWords(text string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(word)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// drawCentered renders lines with the built-in bitmap face on a small canvas,
// then scales the canvas up to fill most of dst.
func drawCentered(dst *image.RGBA, lines []string, c color.Color) {
	if len(lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	if width == 0 {
		return
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, lineHeight*len(lines)))
	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(c), Face: face}
	for i, line := range lines {
		x := (width - font.MeasureString(face, line).Ceil()) / 2
		d.Dot = fixed.P(x, i*lineHeight+metrics.Ascent.Ceil())
		d.DrawString(line)
	}

	b := dst.Bounds()
	cb := canvas.Bounds()
	scale := max(1, min(b.Dx()*8/10/cb.Dx(), b.Dy()*6/10/cb.Dy()))
	sw, sh := cb.Dx()*scale, cb.Dy()*scale
	x0 := b.Min.X + (b.Dx()-sw)/2
	y0 := b.Min.Y + (b.Dy()-sh)/2
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+sw, y0+sh), canvas, cb, xdraw.Over, nil)
}
