// Package convert routes a conversion request to the extractor and encoder
// pipeline for its (source, target) pair.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/encode"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/ocr"
	"github.com/spherical/doc-converter/internal/source"
)

// DefaultBaseName names artifacts whose source had no usable name.
const DefaultBaseName = "converted"

// pipeline describes how one supported pair is produced.
type pipeline struct {
	description string
	needsText   bool
}

var pipelines = map[domain.SourceKind]map[domain.TargetKind]pipeline{
	domain.SourceImage: {
		domain.TargetText: {"OCR text as a plain text file", true},
		domain.TargetWord: {"OCR text as a Word document", true},
		domain.TargetPDF:  {"Image placed on a single PDF page", false},
	},
	domain.SourcePDF: {
		domain.TargetText:   {"Embedded text as a plain text file", true},
		domain.TargetWord:   {"One paragraph per page in a Word document", true},
		domain.TargetSheet:  {"Detected tables merged into one sheet", false},
		domain.TargetSlides: {"One slide per page", true},
	},
}

// ocrCapable is implemented by text extractors that know whether they can
// recognize raster pages.
type ocrCapable interface {
	HasOCR() bool
}

// Options wires a Dispatcher.
type Options struct {
	Loader *source.Loader
	Text   domain.TextExtractor
	Tables domain.TableExtractor
	Slides encode.SlidesEncoder
	Audit  *audit.Logger
	Logger *observability.Logger
}

// Dispatcher holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	loader *source.Loader
	text   domain.TextExtractor
	tables domain.TableExtractor
	words  encode.WordEncoder
	plain  encode.TextEncoder
	sheets encode.SheetEncoder
	slides encode.SlidesEncoder
	images encode.ImagePDFEncoder
	audit  *audit.Logger
	logger *observability.Logger
}

// New creates a dispatcher. Missing loader, slide settings, audit and logger
// fall back to defaults; extractors are required by the pairs that use them.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = source.NewLoader(0)
	}
	slides := opts.Slides
	if slides.TitleFormat == "" || slides.MaxBodyRunes <= 0 {
		slides = encode.NewSlidesEncoder(slides.TitleFormat, slides.MaxBodyRunes)
	}
	auditLogger := opts.Audit
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger, nil)
	}
	return &Dispatcher{
		loader: loader,
		text:   opts.Text,
		tables: opts.Tables,
		slides: slides,
		audit:  auditLogger,
		logger: logger.WithOperation("convert"),
	}
}

// Supports reports whether the pair has a pipeline.
func Supports(src domain.SourceKind, target domain.TargetKind) bool {
	_, ok := pipelines[src][target]
	return ok
}

// SupportedPairs lists every supported pair, images first.
func SupportedPairs() []domain.ConversionPair {
	var pairs []domain.ConversionPair
	for _, src := range []domain.SourceKind{domain.SourceImage, domain.SourcePDF} {
		for _, target := range domain.AllTargets {
			p, ok := pipelines[src][target]
			if !ok {
				continue
			}
			pairs = append(pairs, domain.ConversionPair{
				Source:      src,
				Target:      target,
				MediaType:   target.MediaType(),
				Description: p.description,
			})
		}
	}
	return pairs
}

// TargetsFor lists the targets reachable from src, in display order.
func TargetsFor(src domain.SourceKind) []domain.TargetKind {
	var targets []domain.TargetKind
	for _, target := range domain.AllTargets {
		if Supports(src, target) {
			targets = append(targets, target)
		}
	}
	return targets
}

// FileName suggests an artifact name: the source base name without its
// extension plus the target extension.
func FileName(sourceName string, target domain.TargetKind) string {
	base := filepath.Base(strings.ReplaceAll(sourceName, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		base = DefaultBaseName
	}
	return base + target.Extension()
}

// Convert runs the pipeline for the request's pair. An unsupported pair fails
// before the input is parsed.
func (d *Dispatcher) Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	start := time.Now()
	srcKind := req.SourceKind

	// Step 1: Resolve the source kind so the pair can be checked
	if srcKind == "" {
		sniffed, err := source.Sniff(req.Data)
		if err != nil {
			guessed, ok := source.KindFromName(req.SourceName)
			if !ok {
				d.record(ctx, req, nil, start, err)
				return nil, err
			}
			sniffed = guessed
		}
		srcKind = sniffed
	}

	// Step 2: Reject unsupported pairs before any parsing
	p, ok := pipelines[srcKind][req.TargetKind]
	if !ok {
		err := domain.UnsupportedConversionError(
			fmt.Sprintf("%s to %s is not supported", srcKind, req.TargetKind))
		d.record(ctx, req, nil, start, err)
		return nil, err
	}
	if p.needsText && srcKind == domain.SourceImage && !d.canRecognize() {
		err := ocr.ErrNoEngine
		d.record(ctx, req, nil, start, err)
		return nil, err
	}

	logger := d.logger.WithContext(ctx).WithConversion(string(srcKind), string(req.TargetKind))

	// Step 3: Validate the input against its kind
	doc, err := d.loader.Load(req.SourceName, req.Data, srcKind)
	if err != nil {
		d.record(ctx, req, nil, start, err)
		return nil, err
	}

	logger.Debug().
		Str("format", doc.Format).
		Int("pages", doc.PageCount).
		Int("bytes", len(doc.Data)).
		Msg("Source loaded")

	// Step 4: Extract and encode
	data, err := d.run(ctx, doc, req.TargetKind, req.Options)
	if err != nil {
		logger.Warn().Err(err).Msg("Conversion failed")
		d.record(ctx, req, &doc, start, err)
		return nil, err
	}

	result := &domain.ConversionResult{
		Data:      data,
		FileName:  FileName(req.SourceName, req.TargetKind),
		MediaType: req.TargetKind.MediaType(),
		PageCount: doc.PageCount,
	}

	logger.Info().
		Str("file_name", result.FileName).
		Int("output_bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Conversion complete")

	d.recordResult(ctx, req, &doc, result, start)
	return result, nil
}

func (d *Dispatcher) canRecognize() bool {
	if d.text == nil {
		return false
	}
	if oc, ok := d.text.(ocrCapable); ok {
		return oc.HasOCR()
	}
	return true
}

func (d *Dispatcher) run(ctx context.Context, doc domain.SourceDocument, target domain.TargetKind, opts domain.ConversionOptions) ([]byte, error) {
	if doc.Kind == domain.SourceImage && target == domain.TargetPDF {
		return d.images.Encode(doc)
	}
	if doc.Kind == domain.SourcePDF && target == domain.TargetSheet {
		return d.spreadsheet(ctx, doc, opts)
	}

	pages, err := d.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	switch target {
	case domain.TargetText:
		return d.plain.Encode(pages)
	case domain.TargetWord:
		return d.words.Encode(pages)
	case domain.TargetSlides:
		return d.slides.Encode(pages)
	}
	return nil, domain.UnsupportedConversionError(fmt.Sprintf("%s to %s is not supported", doc.Kind, target))
}

func (d *Dispatcher) extractText(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	if d.text == nil {
		return nil, domain.ConfigError("no text extractor configured", nil)
	}
	pages, err := d.text.ExtractText(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (d *Dispatcher) spreadsheet(ctx context.Context, doc domain.SourceDocument, opts domain.ConversionOptions) ([]byte, error) {
	if d.tables == nil {
		return nil, domain.ConfigError("no table extractor configured", nil)
	}

	tables, err := d.tables.ExtractTables(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := MergeTables(tables)
	if merged != nil {
		return d.sheets.EncodeTable(merged)
	}

	if !opts.AllowTextFallback {
		return nil, domain.NoTableFoundError(fmt.Sprintf("no table detected on %d page(s)", doc.PageCount))
	}

	d.logger.WithContext(ctx).Info().
		Int("pages", doc.PageCount).
		Msg("No table detected, writing extracted text column")

	pages, err := d.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}
	return d.sheets.Encode(pages)
}

// MergeTables combines per-page tables into one, in page order. The first
// table's header becomes the header; a later header equal to it is dropped,
// any other later header is kept as a data row. Returns nil when every entry
// is nil.
func MergeTables(tables []*domain.Table) *domain.Table {
	var merged *domain.Table
	for _, t := range tables {
		if t == nil {
			continue
		}
		if merged == nil {
			merged = &domain.Table{Header: slices.Clone(t.Header)}
		} else if len(t.Header) > 0 && !slices.Equal(t.Header, merged.Header) {
			merged.Rows = append(merged.Rows, slices.Clone(t.Header))
		}
		for _, row := range t.Rows {
			merged.Rows = append(merged.Rows, slices.Clone(row))
		}
	}
	return merged
}

func (d *Dispatcher) record(ctx context.Context, req domain.ConversionRequest, doc *domain.SourceDocument, start time.Time, err error) {
	status := string(domain.TypeOf(err))
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
	case status == "":
		status = "error"
	}
	event := audit.Event{
		SourceKind: string(req.SourceKind),
		TargetKind: string(req.TargetKind),
		Status:     status,
		InputBytes: int64(len(req.Data)),
		Duration:   time.Since(start),
	}
	if doc != nil {
		event.SourceKind = string(doc.Kind)
		event.PageCount = doc.PageCount
	}
	d.audit.Record(ctx, event)
}

func (d *Dispatcher) recordResult(ctx context.Context, req domain.ConversionRequest, doc *domain.SourceDocument, result *domain.ConversionResult, start time.Time) {
	d.audit.Record(ctx, audit.Event{
		SourceKind:  string(doc.Kind),
		TargetKind:  string(req.TargetKind),
		Status:      audit.StatusOK,
		InputBytes:  int64(len(req.Data)),
		OutputBytes: int64(len(result.Data)),
		PageCount:   doc.PageCount,
		Duration:    time.Since(start),
	})
}
