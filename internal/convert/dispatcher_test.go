package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/encode"
	"github.com/spherical/doc-converter/internal/testutil"
)

type fakeText struct {
	mu    sync.Mutex
	pages []string
	err   error
	noOCR bool
	calls int
}

func (f *fakeText) HasOCR() bool { return !f.noOCR }

func (f *fakeText) ExtractText(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.pages, f.err
}

type fakeTables struct {
	tables []*domain.Table
	err    error
	calls  int
}

func (f *fakeTables) ExtractTables(ctx context.Context, doc domain.SourceDocument) ([]*domain.Table, error) {
	f.calls++
	return f.tables, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Write(ctx context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.events, nil
}

func (s *recordingSink) Close() error { return nil }

func newDispatcher(text *fakeText, tables *fakeTables) (*Dispatcher, *recordingSink) {
	sink := &recordingSink{}
	opts := Options{Audit: audit.NewLogger(nil, sink)}
	if text != nil {
		opts.Text = text
	}
	if tables != nil {
		opts.Tables = tables
	}
	return New(opts), sink
}

func TestConvert_UnsupportedPairsFailBeforeParsing(t *testing.T) {
	tests := []struct {
		source domain.SourceKind
		target domain.TargetKind
	}{
		{domain.SourceImage, domain.TargetSheet},
		{domain.SourceImage, domain.TargetSlides},
		{domain.SourcePDF, domain.TargetPDF},
	}

	for _, tt := range tests {
		t.Run(string(tt.source)+"_to_"+string(tt.target), func(t *testing.T) {
			text := &fakeText{pages: []string{"x"}}
			tables := &fakeTables{}
			d, sink := newDispatcher(text, tables)

			_, err := d.Convert(context.Background(), domain.ConversionRequest{
				SourceKind: tt.source,
				TargetKind: tt.target,
				Data:       []byte("definitely not a document"),
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnsupportedConversion)
			assert.Zero(t, text.calls)
			assert.Zero(t, tables.calls)
			require.Len(t, sink.events, 1)
			assert.Equal(t, "unsupported_conversion", sink.events[0].Status)
		})
	}
}

func TestConvert_PDFToText(t *testing.T) {
	text := &fakeText{pages: []string{"Hello", ""}}
	d, sink := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetText,
		SourceName: "report.pdf",
		Data:       testutil.TextPDF(t, "Hello", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello\n", string(result.Data))
	assert.Equal(t, "report.txt", result.FileName)
	assert.Equal(t, domain.MediaTypeText, result.MediaType)
	assert.Equal(t, 2, result.PageCount)

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.StatusOK, sink.events[0].Status)
	assert.Equal(t, int64(len(result.Data)), sink.events[0].OutputBytes)
}

func TestConvert_ImageToText(t *testing.T) {
	text := &fakeText{pages: []string{"Invoice 42"}}
	d, _ := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourceImage,
		TargetKind: domain.TargetText,
		SourceName: "scan.png",
		Data:       testutil.PNG(t, 20, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoice 42", string(result.Data))
	assert.Equal(t, "scan.txt", result.FileName)
}

func TestConvert_SniffsUndeclaredSource(t *testing.T) {
	text := &fakeText{pages: []string{"a"}}
	d, _ := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		TargetKind: domain.TargetWord,
		Data:       testutil.JPEG(t, 8, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, "converted.docx", result.FileName)
	assert.Equal(t, domain.MediaTypeWord, result.MediaType)
}

func TestConvert_PDFToWord(t *testing.T) {
	text := &fakeText{pages: []string{"First page", "Second & last"}}
	d, _ := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetWord,
		Data:       testutil.TextPDF(t, "First page", "Second & last"),
	})
	require.NoError(t, err)

	body := zipPart(t, result.Data, "word/document.xml")
	assert.Equal(t, 2, bytes.Count(body, []byte("<w:p>")))
	assert.Contains(t, string(body), "Second &amp; last")
}

func TestConvert_PDFToSlides(t *testing.T) {
	text := &fakeText{pages: []string{"one", "two", "three"}}
	d, _ := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetSlides,
		Data:       testutil.TextPDF(t, "one", "two", "three"),
	})
	require.NoError(t, err)

	slide := zipPart(t, result.Data, "ppt/slides/slide3.xml")
	assert.Contains(t, string(slide), "Page 3")
	assert.Contains(t, string(slide), "three")
}

func TestConvert_ImageToPDFSkipsExtraction(t *testing.T) {
	text := &fakeText{noOCR: true}
	d, _ := newDispatcher(text, nil)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourceImage,
		TargetKind: domain.TargetPDF,
		SourceName: "photo.jpg",
		Data:       testutil.JPEG(t, 40, 30),
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF-")))
	assert.Equal(t, "photo.pdf", result.FileName)
	assert.Zero(t, text.calls)
}

func TestConvert_ImageTextWithoutOCR(t *testing.T) {
	text := &fakeText{noOCR: true}
	d, sink := newDispatcher(text, nil)

	_, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourceImage,
		TargetKind: domain.TargetText,
		Data:       testutil.PNG(t, 4, 4),
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeConfig, domain.TypeOf(err))
	assert.Zero(t, text.calls)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "config", sink.events[0].Status)
}

func TestConvert_UnreadableDocument(t *testing.T) {
	text := &fakeText{pages: []string{"x"}}
	d, _ := newDispatcher(text, nil)

	_, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetText,
		Data:       []byte("plain text, not a pdf"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	assert.Zero(t, text.calls)
}

func TestConvert_ExtractorErrorPropagates(t *testing.T) {
	cause := domain.UnreadableDocumentError("broken xref", nil)
	d, _ := newDispatcher(&fakeText{err: cause}, nil)

	_, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetText,
		Data:       testutil.TextPDF(t, "x"),
	})
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestConvert_Cancelled(t *testing.T) {
	d, sink := newDispatcher(&fakeText{pages: []string{"x"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Convert(ctx, domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetText,
		Data:       testutil.TextPDF(t, "x"),
	})
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, sink.events, 1)
	assert.Equal(t, "cancelled", sink.events[0].Status)
}

func TestConvert_PDFToSheet(t *testing.T) {
	header := []string{"Name", "Qty"}
	tables := &fakeTables{tables: []*domain.Table{
		{Header: header, Rows: [][]string{{"bolts", "10"}}},
		nil,
		{Header: header, Rows: [][]string{{"nuts", "20"}}},
	}}
	text := &fakeText{pages: []string{"a", "b", "c"}}
	d, _ := newDispatcher(text, tables)

	result, err := d.Convert(context.Background(), domain.ConversionRequest{
		SourceKind: domain.SourcePDF,
		TargetKind: domain.TargetSheet,
		SourceName: "inventory.pdf",
		Data:       testutil.TextPDF(t, "a", "b", "c"),
	})
	require.NoError(t, err)
	assert.Equal(t, "inventory.xlsx", result.FileName)
	assert.Zero(t, text.calls)

	assert.Equal(t, [][]string{
		{"Name", "Qty"},
		{"bolts", "10"},
		{"nuts", "20"},
	}, sheetRows(t, result.Data))
}

func TestConvert_PDFToSheetWithoutTables(t *testing.T) {
	data := testutil.TextPDF(t, "just prose")

	t.Run("fails", func(t *testing.T) {
		d, sink := newDispatcher(&fakeText{pages: []string{"just prose"}}, &fakeTables{tables: []*domain.Table{nil}})

		_, err := d.Convert(context.Background(), domain.ConversionRequest{
			SourceKind: domain.SourcePDF,
			TargetKind: domain.TargetSheet,
			Data:       data,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNoTableFound)
		assert.True(t, domain.IsRecoverable(err))
		assert.Equal(t, "no_table_found", sink.events[0].Status)
	})

	t.Run("text fallback", func(t *testing.T) {
		d, _ := newDispatcher(&fakeText{pages: []string{"just prose"}}, &fakeTables{tables: []*domain.Table{nil}})

		result, err := d.Convert(context.Background(), domain.ConversionRequest{
			SourceKind: domain.SourcePDF,
			TargetKind: domain.TargetSheet,
			Data:       data,
			Options:    domain.ConversionOptions{AllowTextFallback: true},
		})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{encode.TextColumnLabel}, {"just prose"}}, sheetRows(t, result.Data))
	})
}

func TestMergeTables(t *testing.T) {
	tests := []struct {
		name   string
		tables []*domain.Table
		want   *domain.Table
	}{
		{
			name:   "no tables",
			tables: []*domain.Table{nil, nil},
			want:   nil,
		},
		{
			name: "repeated header dropped",
			tables: []*domain.Table{
				{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}},
				{Header: []string{"a", "b"}, Rows: [][]string{{"3", "4"}}},
			},
			want: &domain.Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}},
		},
		{
			name: "different header kept as row",
			tables: []*domain.Table{
				nil,
				{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}},
				{Header: []string{"x", "y", "z"}, Rows: [][]string{{"5"}}},
			},
			want: &domain.Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"x", "y", "z"}, {"5"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeTables(tt.tables))
		})
	}
}

func TestMergeTables_DoesNotAliasInput(t *testing.T) {
	in := []*domain.Table{{Header: []string{"a"}, Rows: [][]string{{"1"}}}}
	merged := MergeTables(in)
	merged.Rows[0][0] = "changed"
	assert.Equal(t, "1", in[0].Rows[0][0])
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name   string
		target domain.TargetKind
		want   string
	}{
		{"scan.png", domain.TargetText, "scan.txt"},
		{"dir/report.final.pdf", domain.TargetSheet, "report.final.xlsx"},
		{`C:\Users\me\deck.pdf`, domain.TargetSlides, "deck.pptx"},
		{"", domain.TargetWord, "converted.docx"},
		{"noext", domain.TargetPDF, "noext.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.name, tt.target))
		})
	}
}

func TestSupportedPairs(t *testing.T) {
	pairs := SupportedPairs()
	assert.Len(t, pairs, 7)
	for _, p := range pairs {
		assert.True(t, Supports(p.Source, p.Target))
		assert.NotEmpty(t, p.Description)
		assert.Equal(t, p.Target.MediaType(), p.MediaType)
	}

	assert.Equal(t, []domain.TargetKind{domain.TargetText, domain.TargetWord, domain.TargetPDF}, TargetsFor(domain.SourceImage))
	assert.False(t, Supports(domain.SourcePDF, domain.TargetPDF))
}

func TestConvert_Concurrent(t *testing.T) {
	d, _ := newDispatcher(&fakeText{pages: []string{"same"}}, nil)
	data := testutil.TextPDF(t, "same")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := d.Convert(context.Background(), domain.ConversionRequest{
				SourceKind: domain.SourcePDF,
				TargetKind: domain.TargetText,
				Data:       data,
			})
			if assert.NoError(t, err) {
				assert.Equal(t, "same", string(result.Data))
			}
		}()
	}
	wg.Wait()
}

func zipPart(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	f, err := zr.Open(name)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	return body
}

func sheetRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(encode.SheetName)
	require.NoError(t, err)
	return rows
}

func TestConvert_UnrecognizedBytes(t *testing.T) {
	text := &fakeText{pages: []string{"x"}}
	d, _ := newDispatcher(text, nil)

	t.Run("no name", func(t *testing.T) {
		_, err := d.Convert(context.Background(), domain.ConversionRequest{
			TargetKind: domain.TargetText,
			Data:       []byte("hello"),
		})
		assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	})

	t.Run("name decides the pair", func(t *testing.T) {
		_, err := d.Convert(context.Background(), domain.ConversionRequest{
			TargetKind: domain.TargetSheet,
			SourceName: "photo.png",
			Data:       []byte("hello"),
		})
		assert.ErrorIs(t, err, domain.ErrUnsupportedConversion)
	})

	assert.Zero(t, text.calls)
}
