package service

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// SafeFileName derives the stored display name from a client-declared file
// name: the base name is slugified (lowercase, ASCII-transliterated, word
// separators as hyphens) and the original extension is re-appended in lower
// case. The declared name is never used as a storage path component as-is.
func SafeFileName(declared string) string {
	base := filepath.Base(declared)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	safe := slug.Make(name)
	if safe == "" {
		safe = "file"
	}
	if ext != "" {
		// Ext keeps the leading dot; only the dot-less part gets slug rules.
		safe += "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return safe
}
