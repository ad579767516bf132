package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies whether an input is a raster image or a PDF.
type SourceKind string

const (
	SourceImage SourceKind = "image"
	SourcePDF   SourceKind = "pdf"
)

// ParseSourceKind normalizes a user-supplied source kind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "img", "png", "jpg", "jpeg":
		return SourceImage, nil
	case "pdf":
		return SourcePDF, nil
	default:
		return "", ValidationError(fmt.Sprintf("unknown source kind %q", s), nil)
	}
}

// TargetKind identifies the requested output container format.
type TargetKind string

const (
	TargetText   TargetKind = "text"
	TargetWord   TargetKind = "docx"
	TargetPDF    TargetKind = "pdf"
	TargetSheet  TargetKind = "xlsx"
	TargetSlides TargetKind = "pptx"
)

// Media types of the produced artifacts.
const (
	MediaTypeText   = "text/plain"
	MediaTypePDF    = "application/pdf"
	MediaTypeWord   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeSheet  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypeSlides = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// AllTargets lists every target kind in display order.
var AllTargets = []TargetKind{TargetText, TargetWord, TargetPDF, TargetSheet, TargetSlides}

// ParseTargetKind normalizes a user-supplied target kind.
func ParseTargetKind(s string) (TargetKind, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "text", "txt":
		return TargetText, nil
	case "docx", "word":
		return TargetWord, nil
	case "pdf":
		return TargetPDF, nil
	case "xlsx", "excel", "spreadsheet":
		return TargetSheet, nil
	case "pptx", "slides", "powerpoint":
		return TargetSlides, nil
	default:
		return "", ValidationError(fmt.Sprintf("unknown target kind %q", s), nil)
	}
}

// MediaType returns the media type of artifacts of this kind.
func (t TargetKind) MediaType() string {
	switch t {
	case TargetText:
		return MediaTypeText
	case TargetWord:
		return MediaTypeWord
	case TargetPDF:
		return MediaTypePDF
	case TargetSheet:
		return MediaTypeSheet
	case TargetSlides:
		return MediaTypeSlides
	}
	return "application/octet-stream"
}

// Extension returns the file extension, including the dot.
func (t TargetKind) Extension() string {
	switch t {
	case TargetText:
		return ".txt"
	case TargetWord, TargetPDF, TargetSheet, TargetSlides:
		return "." + string(t)
	}
	return ""
}

// SourceDocument is an immutable input unit owned by one conversion request.
type SourceDocument struct {
	Kind      SourceKind
	Name      string
	Format    string // png, jpeg, gif, bmp, tiff, webp or pdf
	PageCount int
	Width     int // pixels, images only
	Height    int
	Data      []byte
}

// Table is a two-dimensional block of cell strings. Header may be empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnCount returns the widest row length, header included.
func (t *Table) ColumnCount() int {
	n := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// ContentKind tags the ExtractedContent variant.
type ContentKind string

const (
	ContentPlainText ContentKind = "plain_text"
	ContentTable     ContentKind = "table"
)

// ExtractedContent is the intermediate representation between extraction and
// encoding. Pages holds one entry per page in page order.
type ExtractedContent struct {
	Kind  ContentKind
	Pages []string
	Table *Table
}

// PlainText wraps per-page strings.
func PlainText(pages []string) ExtractedContent {
	return ExtractedContent{Kind: ContentPlainText, Pages: pages}
}

// TableContent wraps a merged table.
func TableContent(t *Table) ExtractedContent {
	return ExtractedContent{Kind: ContentTable, Table: t}
}

// ConversionOptions carries per-request switches.
type ConversionOptions struct {
	// AllowTextFallback makes PDF to spreadsheet emit a single "Extracted Text"
	// column instead of failing when no table is detected.
	AllowTextFallback bool
}

// ConversionRequest is validated before dispatch.
type ConversionRequest struct {
	SourceKind SourceKind
	TargetKind TargetKind
	SourceName string
	Data       []byte
	Options    ConversionOptions
}

// ConversionResult is handed to the caller, who owns delivery.
type ConversionResult struct {
	Data      []byte
	FileName  string
	MediaType string
	PageCount int
}

// ConversionPair is one supported (source, target) combination.
type ConversionPair struct {
	Source      SourceKind `json:"source"`
	Target      TargetKind `json:"target"`
	MediaType   string     `json:"media_type"`
	Description string     `json:"description"`
}
