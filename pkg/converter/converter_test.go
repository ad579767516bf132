package converter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/internal/testutil"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OCR.Engine = "none"
	cfg.Observability.LogLevel = "error"
	c, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_ConvertFile(t *testing.T) {
	c := newTestClient(t)

	path := filepath.Join(t.TempDir(), "minutes.pdf")
	require.NoError(t, os.WriteFile(path, testutil.TextPDF(t, "Agenda", "Actions"), 0o644))

	result, err := c.Convert(context.Background(), path, TargetText)
	require.NoError(t, err)
	assert.Equal(t, "Agenda\nActions", string(result.Data))
	assert.Equal(t, "minutes.txt", result.FileName)
	assert.Equal(t, 2, result.PageCount)
}

func TestClient_ConvertBytes(t *testing.T) {
	c := newTestClient(t)

	result, err := c.ConvertBytes(context.Background(), "", testutil.PNG(t, 16, 16), TargetPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF-")))
	assert.Equal(t, "converted.pdf", result.FileName)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Convert(ctx, filepath.Join(t.TempDir(), "missing.pdf"), TargetText)
	require.Error(t, err)

	_, err = c.ConvertBytes(ctx, "photo.png", testutil.PNG(t, 4, 4), TargetSheet)
	assert.True(t, errors.Is(err, ErrUnsupportedConversion))

	_, err = c.ConvertWithOptions(ctx, "prose.pdf", testutil.TextPDF(t, "No tables here"), SourcePDF, TargetSheet, Options{})
	assert.True(t, errors.Is(err, ErrNoTableFound))
}

func TestSupportedPairs(t *testing.T) {
	assert.NotEmpty(t, SupportedPairs())
}
