package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/cmd/doc-converter/ui"
	"github.com/spherical/doc-converter/internal/app"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	ui.SetOutput(&out, &out)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))

	convertOut, convertOutDir, convertSource, convertFallback, convertJobs, convertForce = "", "", "", false, 1, false
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-converter dev")
}

func TestPairs(t *testing.T) {
	out, err := run(t, "pairs")
	require.NoError(t, err)
	assert.Contains(t, out, "Source")
	assert.Contains(t, out, "pptx")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(input, testutil.TextPDF(t, "Ship it"), 0o644))

	out, err := run(t, "convert", "--to", "text", input)
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Ship it", string(data))
	assert.Contains(t, out, "Wrote")
}

func TestConvertCommand_Batch(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	good := filepath.Join(dir, "photo.png")
	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(good, testutil.PNG(t, 10, 10), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("not really a pdf"), 0o644))

	out, err := run(t, "convert", "--to", "pdf", "--out-dir", outDir, good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 conversions failed")
	assert.Contains(t, out, "Conversion Summary")

	_, statErr := os.Stat(filepath.Join(outDir, "photo.pdf"))
	assert.NoError(t, statErr)
}

func TestConvertCommand_BadTarget(t *testing.T) {
	_, err := run(t, "convert", "--to", "odt", "x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target kind")
}

func TestConvertCommand_Jobs(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, testutil.PNG(t, 6, 6), 0o644))
		inputs = append(inputs, path)
	}

	out, err := run(t, append([]string{"convert", "--to", "pdf", "--jobs", "2"}, inputs...)...)
	require.NoError(t, err, out)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestConvertCommand_BadJobs(t *testing.T) {
	_, err := run(t, "convert", "--to", "pdf", "--jobs", "0", "a.png", "b.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--jobs")
}

func TestConvertCommand_KeepsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "report.png")
	existing := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(input, testutil.PNG(t, 6, 6), 0o644))
	require.NoError(t, os.WriteFile(existing, []byte("the original report"), 0o644))

	out, err := run(t, "convert", "--to", "pdf", input)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "the original report", string(data))

	out, err = run(t, "convert", "--to", "pdf", "--force", input)
	require.NoError(t, err, out)

	data, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestConvertCommand_OutputClash(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "report.png")
	jpg := filepath.Join(dir, "report.jpg")
	require.NoError(t, os.WriteFile(png, testutil.PNG(t, 6, 6), 0o644))
	require.NoError(t, os.WriteFile(jpg, testutil.JPEG(t, 6, 6), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"sequential", []string{"convert", "--to", "pdf", png, jpg}},
		{"parallel", []string{"convert", "--to", "pdf", "--jobs", "2", png, jpg}},
		{"forced", []string{"convert", "--to", "pdf", "--force", png, jpg}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "would both be written to")

			_, statErr := os.Stat(filepath.Join(dir, "report.pdf"))
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestConvertCommand_OutputIsInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(input, testutil.PNG(t, 6, 6), 0o644))

	_, err := run(t, "convert", "--to", "pdf", "--force", "--out", input, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would overwrite an input")
}

func TestConvertSequential_CancelledReportsEveryFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OCR.Engine = "none"
	a, err := app.New(context.Background(), cfg, observability.Nop())
	require.NoError(t, err)
	defer a.Close()

	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "c.png")}
	outputs := []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.pdf"), filepath.Join(dir, "c.pdf")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	ui.SetOutput(&out, &out)
	outcomes := convertSequential(ctx, a, paths, outputs, "", domain.TargetPDF)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, paths[i], o.input)
		assert.ErrorIs(t, o.err, context.Canceled)
	}

	err = summarize(outcomes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 3 conversions failed")
}
