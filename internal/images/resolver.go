// Package images builds card artwork URLs.
package images

import (
	"fmt"
	"strings"

	domain "github.com/pocket-tcg/api/internal/domain"
)

// DefaultBaseURL hosts the English card scans.
const DefaultBaseURL = "https://limitlesstcg.nyc3.cdn.digitaloceanspaces.com/pocket"

// Resolver maps card identities to image URLs.
type Resolver struct {
	base string
}

// NewResolver returns a Resolver rooted at baseURL, or DefaultBaseURL when empty.
func NewResolver(baseURL string) *Resolver {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Resolver{base: base}
}

// URL returns "{base}/{set}/{set}_{NNN}_EN.webp".
func (r *Resolver) URL(ref domain.CardRef) string {
	base := DefaultBaseURL
	if r != nil && r.base != "" {
		base = r.base
	}
	return fmt.Sprintf("%s/%s/%s_%s_EN.webp", base, ref.Set, ref.Set, padNumber(ref.Number))
}

// padNumber keeps the last three digits of the zero-padded number, so 7 becomes "007" and
// 1234 becomes "234".
func padNumber(n int) string {
	s := fmt.Sprintf("%03d", n)
	return s[len(s)-3:]
}
