package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		want     string
	}{
		{"uppercase extension lowered", "report.PDF", "report.pdf"},
		{"spaces become hyphens", "Quarterly Report 2026.docx", "quarterly-report-2026.docx"},
		{"accents transliterated", "résumé.pdf", "resume.pdf"},
		{"no extension", "README", "readme"},
		{"path components stripped", "../../etc/passwd", "passwd"},
		{"leading and trailing separators trimmed", "--draft--.txt", "draft.txt"},
		{"empty base falls back", "!!!.png", "file.png"},
		{"double extension keeps only the last", "archive.tar.GZ", "archive-tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFileName(tt.declared))
		})
	}
}
