package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Extractor turns a stored upload blob into plain text for generation.
// PDF/DOCX extraction plugs in behind this interface; the orchestration
// engine only ever sees text.
type Extractor interface {
	Extract(ctx context.Context, contentRef string) (string, error)
}

// PlainTextExtractor reads the blob as UTF-8 text, dropping invalid bytes.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(ctx context.Context, contentRef string) (string, error) {
	raw, err := os.ReadFile(contentRef)
	if err != nil {
		return "", fmt.Errorf("read content blob: %w", err)
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}
