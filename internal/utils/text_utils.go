package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// TextProcessor prepares inbound message text before analysis
type TextProcessor struct {
	maxSize int
	logger  *zap.Logger
}

// NewTextProcessor creates a new TextProcessor. maxSize <= 0 disables
// truncation.
func NewTextProcessor(maxSize int, logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		maxSize: maxSize,
		logger:  logger,
	}
}

// TruncateText truncates text to the configured byte limit on a rune
// boundary and marks the cut
func (tp *TextProcessor) TruncateText(text string) string {
	if tp.maxSize <= 0 || len(text) <= tp.maxSize {
		return text
	}

	truncated := text[:tp.maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", tp.maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 drops invalid UTF-8 byte sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// Normalize converts text to Unicode NFC so composed and decomposed forms
// of the same characters match the same patterns
func (tp *TextProcessor) Normalize(text string) string {
	return norm.NFC.String(text)
}

// ProcessText sanitizes, normalizes and truncates text in one operation
func (tp *TextProcessor) ProcessText(text string) string {
	return tp.TruncateText(tp.Normalize(tp.SanitizeUTF8(text)))
}

// TruncateRunes returns at most n runes of s
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
