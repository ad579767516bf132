// Package encode serializes extracted content into downloadable containers.
// Encoders are pure: they never mutate their input and keep no state.
package encode

import (
	"strings"
	"unicode/utf8"

	"github.com/spherical/doc-converter/internal/domain"
)

// JoinPages concatenates page strings with a single newline between them.
// ["Hello", ""] becomes "Hello\n".
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n")
}

// TextEncoder writes pages as UTF-8 plain text.
type TextEncoder struct{}

var _ domain.TextEncoder = TextEncoder{}

// Encode joins pages and returns their UTF-8 bytes.
func (TextEncoder) Encode(pages []string) ([]byte, error) {
	joined := JoinPages(pages)
	if !utf8.ValidString(joined) {
		joined = strings.ToValidUTF8(joined, "�")
	}
	return []byte(joined), nil
}
