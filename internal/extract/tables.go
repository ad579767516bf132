package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

// TableOptions configures a TableService.
type TableOptions struct {
	// MinColumnGap is the horizontal gap, in em, that separates two cells.
	MinColumnGap float64
	// MinRows is the smallest number of consecutive multi-cell rows that
	// count as a table, header included.
	MinRows int
	Logger  *observability.Logger
}

// TableService implements domain.TableExtractor using glyph positions.
type TableService struct {
	minGap  float64
	minRows int
	logger  *observability.Logger
}

var _ domain.TableExtractor = (*TableService)(nil)

// NewTableService creates a new table extractor
func NewTableService(opts TableOptions) *TableService {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	minGap := opts.MinColumnGap
	if minGap <= 0 {
		minGap = 1.0
	}
	minRows := opts.MinRows
	if minRows < 1 {
		minRows = 2
	}
	return &TableService{
		minGap:  minGap,
		minRows: minRows,
		logger:  logger.WithOperation("extract_tables"),
	}
}

// glyph is one positioned character, in PDF user space (y grows upward).
type glyph struct {
	x, y, w, size float64
	s             string
}

// ExtractTables returns one entry per page; nil when the page holds no table.
func (s *TableService) ExtractTables(ctx context.Context, doc domain.SourceDocument) (tables []*domain.Table, err error) {
	if doc.Kind != domain.SourcePDF {
		return nil, domain.ValidationError(fmt.Sprintf("cannot detect tables in %q", doc.Kind), nil)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			tables = nil
			err = domain.UnreadableDocumentError("failed to parse PDF content", fmt.Errorf("%v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, domain.UnreadableDocumentError("failed to open PDF", err)
	}

	pageCount := r.NumPage()
	tables = make([]*domain.Table, pageCount)
	found := 0

	for i := 1; i <= pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		glyphs := pageGlyphs(page)
		tables[i-1] = detectTable(glyphs, s.minGap, s.minRows)
		if tables[i-1] != nil {
			found++
		}
	}

	s.logger.Debug().
		Int("pages", pageCount).
		Int("tables", found).
		Msg("table detection complete")

	return tables, nil
}

func pageGlyphs(page pdf.Page) []glyph {
	content := page.Content()
	glyphs := make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		glyphs = append(glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
	}
	return glyphs
}

// detectTable groups glyphs into lines and cells and returns the largest run of
// consecutive multi-cell lines, or nil.
func detectTable(glyphs []glyph, minGap float64, minRows int) *domain.Table {
	lines := groupLines(glyphs)
	cells := make([][]string, len(lines))
	for i, line := range lines {
		cells[i] = splitCells(line, minGap)
	}

	bestStart, bestLen := -1, 0
	runStart := -1
	for i := 0; i <= len(cells); i++ {
		if i < len(cells) && len(cells[i]) >= 2 {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if n := i - runStart; n >= minRows && n > bestLen {
				bestStart, bestLen = runStart, n
			}
			runStart = -1
		}
	}

	if bestStart < 0 {
		return nil
	}

	return &domain.Table{
		Header: cells[bestStart],
		Rows:   cells[bestStart+1 : bestStart+bestLen],
	}
}

// groupLines clusters glyphs sharing a baseline, top of page first, each line
// ordered left to right.
func groupLines(glyphs []glyph) [][]glyph {
	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].y > sorted[j].y })

	var lines [][]glyph
	var lineY float64
	for _, g := range sorted {
		tol := math.Max(emSize(g)*0.3, 1)
		if len(lines) == 0 || math.Abs(lineY-g.y) > tol {
			lines = append(lines, []glyph{g})
			lineY = g.y
			continue
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], g)
	}

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].x < line[j].x })
	}
	return lines
}

// splitCells cuts a line wherever the horizontal gap exceeds minGap em.
func splitCells(line []glyph, minGap float64) []string {
	var cells []string
	var cur strings.Builder
	right := math.Inf(-1)

	for _, g := range line {
		if cur.Len() > 0 && g.x-right > minGap*emSize(g) {
			if cell := strings.TrimSpace(cur.String()); cell != "" {
				cells = append(cells, cell)
			}
			cur.Reset()
		}
		cur.WriteString(g.s)
		right = math.Max(right, g.x+advance(g))
	}
	if cell := strings.TrimSpace(cur.String()); cell != "" {
		cells = append(cells, cell)
	}
	return cells
}

func emSize(g glyph) float64 {
	if g.size > 0 {
		return g.size
	}
	return 10
}

// advance is the glyph width, estimated at half an em when the font carries
// no width table.
func advance(g glyph) float64 {
	if g.w > 0 {
		return g.w
	}
	return 0.5 * emSize(g)
}
