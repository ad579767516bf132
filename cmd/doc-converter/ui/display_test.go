package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestTableAndStatus(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	SetOutput(&out, &out)

	Table([]string{"File", "Status"}, [][]string{{"a.pdf", Status("ok", false)}})

	assert.Contains(t, out.String(), "File   Status")
	assert.Contains(t, out.String(), "a.pdf  ok")
	assert.False(t, Interactive(), "a buffer is not a terminal")
}
