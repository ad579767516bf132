package encode

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spherical/doc-converter/internal/domain"
)

// ImagePDFEncoder places a raster image on a single page sized to it.
type ImagePDFEncoder struct{}

// Encode returns a one-page PDF showing the image at native size (one pixel
// per point) with no text layer. JPEG data is embedded as-is.
func (ImagePDFEncoder) Encode(doc domain.SourceDocument) ([]byte, error) {
	if doc.Kind != domain.SourceImage {
		return nil, domain.EncodingFailureError("image to PDF needs an image source", nil)
	}

	data, imageType, err := embeddable(doc)
	if err != nil {
		return nil, err
	}

	w, h := float64(doc.Width), float64(doc.Height)
	if w <= 0 || h <= 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, domain.EncodingFailureError("read image size", err)
		}
		w, h = float64(cfg.Width), float64(cfg.Height)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("doc-converter", true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(data))
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domain.EncodingFailureError("write PDF", err)
	}
	return buf.Bytes(), nil
}

// embeddable returns bytes fpdf can parse along with their fpdf image type.
func embeddable(doc domain.SourceDocument) ([]byte, string, error) {
	switch doc.Format {
	case "jpeg":
		return doc.Data, "JPG", nil
	case "gif":
		return doc.Data, "GIF", nil
	case "png":
		if pngSupported(doc.Data) {
			return doc.Data, "PNG", nil
		}
	}

	data, err := reencodePNG(doc.Data)
	if err != nil {
		return nil, "", err
	}
	return data, "PNG", nil
}

// pngSupported reports whether the PNG is 8-bit or less and not interlaced.
func pngSupported(data []byte) bool {
	// Signature (8) + IHDR length and type (8) + width, height (8), then
	// bit depth, color type, compression, filter, interlace.
	if len(data) < 29 {
		return false
	}
	bitDepth := data[24]
	interlace := data[28]
	return bitDepth <= 8 && interlace == 0
}

// reencodePNG decodes any registered raster format into an 8-bit PNG.
func reencodePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.EncodingFailureError("decode image", err)
	}

	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, domain.EncodingFailureError("encode image", err)
	}
	return buf.Bytes(), nil
}
