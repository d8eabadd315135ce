// Package extract pulls plain text out of document files for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor converts supported document formats to plain text.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content. Plain text
// formats (.txt, .md, .rst) are returned as-is after UTF-8 validation; PDF
// and DOCX content is extracted from the binary format. Unknown extensions
// are treated as plain text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on ext, which should include
// the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	default:
		return extractPlain(content)
	}
}

// extractPlain validates content as UTF-8, replacing invalid sequences with
// the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
