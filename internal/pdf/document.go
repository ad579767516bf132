// Package pdf wraps go-fitz for in-memory access to PDF page text and rasters.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/doc-converter/internal/domain"
)

// Document is an open PDF held entirely in memory.
type Document struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// HasHeader reports whether a %PDF- marker appears within the first KiB.
func HasHeader(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// Open parses PDF bytes. No temporary files are written.
func Open(data []byte) (*Document, error) {
	if !HasHeader(data) {
		return nil, domain.UnreadableDocumentError("missing %PDF- header", nil)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.UnreadableDocumentError("failed to open PDF", err)
	}

	if doc.NumPage() <= 0 {
		doc.Close()
		return nil, domain.UnreadableDocumentError("PDF has no pages", nil)
	}

	return &Document{doc: doc}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

// Text returns the embedded text layer of a zero-based page.
func (d *Document) Text(ctx context.Context, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	text, err := d.doc.Text(page)
	if err != nil {
		return "", domain.UnreadableDocumentError(fmt.Sprintf("failed to read text of page %d", page+1), err)
	}
	return text, nil
}

// RenderPNG rasterizes a zero-based page at the given resolution.
func (d *Document) RenderPNG(ctx context.Context, page int, dpi float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	img, err := d.doc.ImageDPI(page, dpi)
	d.mu.Unlock()
	if err != nil {
		return nil, domain.UnreadableDocumentError(fmt.Sprintf("failed to render page %d", page+1), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to encode page %d", page+1), err)
	}
	return buf.Bytes(), nil
}

// Close releases the underlying document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
