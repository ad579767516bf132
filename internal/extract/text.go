// Package extract produces per-page text and tables from source documents.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/ocr"
	"github.com/spherical/doc-converter/internal/pdf"
)

// TextOptions configures a TextService.
type TextOptions struct {
	// Engine recognizes image pages. Nil disables OCR.
	Engine    ocr.Engine
	Languages []string
	// OCRFallback renders PDF pages with an empty text layer and runs OCR on them.
	OCRFallback bool
	DPI         float64
	Logger      *observability.Logger
}

// TextService implements domain.TextExtractor.
type TextService struct {
	engine    ocr.Engine
	languages []string
	fallback  bool
	dpi       float64
	logger    *observability.Logger
}

var _ domain.TextExtractor = (*TextService)(nil)

// NewTextService creates a new text extractor
func NewTextService(opts TextOptions) *TextService {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 300
	}
	return &TextService{
		engine:    opts.Engine,
		languages: opts.Languages,
		fallback:  opts.OCRFallback,
		dpi:       dpi,
		logger:    logger.WithOperation("extract_text"),
	}
}

// HasOCR reports whether image pages can be recognized.
func (s *TextService) HasOCR() bool {
	return s.engine != nil
}

// ExtractText returns one string per page, in page order.
func (s *TextService) ExtractText(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	switch doc.Kind {
	case domain.SourceImage:
		return s.extractImage(ctx, doc)
	case domain.SourcePDF:
		return s.extractPDF(ctx, doc)
	default:
		return nil, domain.ValidationError(fmt.Sprintf("cannot extract text from %q", doc.Kind), nil)
	}
}

func (s *TextService) extractImage(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	if s.engine == nil {
		return nil, ocr.ErrNoEngine
	}

	startTime := time.Now()
	text, err := s.engine.Recognize(ctx, ocr.Input{
		Image:     doc.Data,
		MediaType: "image/" + doc.Format,
		Languages: s.languages,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.UnreadableDocumentError("OCR failed", err)
	}

	s.logger.Debug().
		Str("engine", s.engine.Name()).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("image recognized")

	return []string{text}, nil
}

func (s *TextService) extractPDF(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	d, err := pdf.Open(doc.Data)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	pageCount := d.PageCount()
	pages := make([]string, pageCount)
	ocrPages := 0

	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		text, err := d.Text(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One bad page leaves an empty entry; the container itself parsed.
			s.logger.Warn().Int("page", i+1).Err(err).Msg("failed to read text layer")
			text = ""
		}
		text = strings.TrimSpace(text)

		if text == "" && s.fallback && s.engine != nil {
			text = s.recognizePage(ctx, d, i)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if text != "" {
				ocrPages++
			}
		}

		pages[i] = text
	}

	s.logger.Debug().
		Int("pages", pageCount).
		Int("ocr_pages", ocrPages).
		Msg("pdf text extracted")

	return pages, nil
}

// recognizePage renders one page and runs OCR on it. Failures yield "".
func (s *TextService) recognizePage(ctx context.Context, d *pdf.Document, page int) string {
	raster, err := d.RenderPNG(ctx, page, s.dpi)
	if err != nil {
		s.logger.Warn().Int("page", page+1).Err(err).Msg("failed to render page for OCR")
		return ""
	}

	text, err := s.engine.Recognize(ctx, ocr.Input{
		Image:     raster,
		MediaType: "image/png",
		DPI:       int(s.dpi),
		Languages: s.languages,
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Int("page", page+1).Str("engine", s.engine.Name()).Err(err).Msg("OCR fallback failed")
		}
		return ""
	}
	return strings.TrimSpace(text)
}
