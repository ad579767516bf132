// Package testutil builds in-memory document fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PNG returns a solid-color PNG of the given size.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG returns a solid-color JPEG of the given size.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// TextPNG renders black text on white, scaled up so OCR engines can read it.
func TextPNG(t testing.TB, text string) []byte {
	t.Helper()

	face := basicfont.Face7x13
	small := image.NewRGBA(image.Rect(0, 0, 20+len(text)*face.Advance, 40))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(10, 26),
	}
	d.DrawString(text)

	const scale = 4
	b := small.Bounds()
	big := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < big.Bounds().Dy(); y++ {
		for x := 0; x < big.Bounds().Dx(); x++ {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TextPDF builds a PDF with one page per entry. An empty entry yields a page
// with no text layer. Newlines in an entry start a new line on the page.
func TextPDF(t testing.TB, pages ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.MultiCell(0, 6, text, "", "L", false)
		}
	}
	return output(t, doc)
}

// TablePDF builds a PDF with one page per table, cells placed in fixed
// columns 45mm apart. A nil table yields a prose-only page.
func TablePDF(t testing.TB, tables ...[][]string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 11)
	for _, rows := range tables {
		doc.AddPage()
		if rows == nil {
			doc.Text(20, 30, "This page only has a paragraph of prose.")
			continue
		}
		for r, row := range rows {
			y := 30 + float64(r)*8
			for c, cell := range row {
				doc.Text(20+float64(c)*45, y, cell)
			}
		}
	}
	return output(t, doc)
}

func output(t testing.TB, doc *fpdf.Fpdf) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, G: 120, B: 40, A: 255}}, image.Point{}, draw.Src)
	return img
}
