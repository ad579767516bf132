package domain

import "context"

// TextExtractor produces plain text from a source document
type TextExtractor interface {
	// ExtractText returns exactly one entry per page, in page order. A page
	// without text yields "". Only an unparseable container is an error.
	ExtractText(ctx context.Context, doc SourceDocument) ([]string, error)
}

// TableExtractor detects tables in a PDF
type TableExtractor interface {
	// ExtractTables returns one entry per page; pages without a detected table
	// hold nil.
	ExtractTables(ctx context.Context, doc SourceDocument) ([]*Table, error)
}

// TextEncoder serializes per-page strings into a container format
type TextEncoder interface {
	Encode(pages []string) ([]byte, error)
}
