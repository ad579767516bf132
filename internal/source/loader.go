// Package source validates uploaded bytes and turns them into SourceDocuments.
package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/pdf"
)

// Loader validates input bytes against a declared source kind.
type Loader struct {
	maxBytes int64
}

// NewLoader creates a loader. maxBytes <= 0 disables the size check.
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

// Load checks that data really is a document of the declared kind and returns
// it as an immutable SourceDocument. An empty declared kind is sniffed.
func (l *Loader) Load(name string, data []byte, declared domain.SourceKind) (domain.SourceDocument, error) {
	if len(data) == 0 {
		return domain.SourceDocument{}, domain.UnreadableDocumentError("input is empty", nil)
	}

	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return domain.SourceDocument{}, domain.ValidationError(
			fmt.Sprintf("input is %d bytes, limit is %d", len(data), l.maxBytes), nil)
	}

	kind := declared
	if kind == "" {
		sniffed, err := Sniff(data)
		if err != nil {
			return domain.SourceDocument{}, err
		}
		kind = sniffed
	}

	switch kind {
	case domain.SourceImage:
		return loadImage(name, data)
	case domain.SourcePDF:
		return loadPDF(name, data)
	default:
		return domain.SourceDocument{}, domain.ValidationError(fmt.Sprintf("unknown source kind %q", kind), nil)
	}
}

// Load validates data with no size limit.
func Load(name string, data []byte, declared domain.SourceKind) (domain.SourceDocument, error) {
	return NewLoader(0).Load(name, data, declared)
}

func loadImage(name string, data []byte) (domain.SourceDocument, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.SourceDocument{}, domain.UnreadableDocumentError("not a supported raster image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return domain.SourceDocument{}, domain.UnreadableDocumentError("image has no pixels", nil)
	}

	return domain.SourceDocument{
		Kind:      domain.SourceImage,
		Name:      name,
		Format:    format,
		PageCount: 1,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Data:      data,
	}, nil
}

func loadPDF(name string, data []byte) (domain.SourceDocument, error) {
	doc, err := pdf.Open(data)
	if err != nil {
		return domain.SourceDocument{}, err
	}
	defer doc.Close()

	return domain.SourceDocument{
		Kind:      domain.SourcePDF,
		Name:      name,
		Format:    "pdf",
		PageCount: doc.PageCount(),
		Data:      data,
	}, nil
}

var imageMagic = [][]byte{
	[]byte("\x89PNG\r\n\x1a\n"),
	[]byte("\xff\xd8\xff"),
	[]byte("GIF87a"),
	[]byte("GIF89a"),
	[]byte("BM"),
	[]byte("II*\x00"),
	[]byte("MM\x00*"),
}

// Sniff detects the source kind from leading magic bytes. Image signatures
// are exact prefixes and win over a %PDF- marker found further in, which
// image metadata may legitimately contain.
func Sniff(data []byte) (domain.SourceKind, error) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return domain.SourcePDF, nil
	}

	for _, magic := range imageMagic {
		if bytes.HasPrefix(data, magic) {
			return domain.SourceImage, nil
		}
	}

	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return domain.SourceImage, nil
	}

	// Some producers emit junk before the header; readers accept it within 1 KiB.
	if pdf.HasHeader(data) {
		return domain.SourcePDF, nil
	}

	return "", domain.UnreadableDocumentError("unrecognized document format", nil)
}

// KindFromName guesses the source kind from a file extension.
func KindFromName(name string) (domain.SourceKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return domain.SourcePDF, true
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return domain.SourceImage, true
	}
	return "", false
}
