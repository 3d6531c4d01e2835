// Package extract classifies raw uploaded bytes into typed text outcomes
// without a parsing library. The heuristics are deliberately approximate:
// PDF structure is detected from header/catalog tokens, and anything else is
// reduced to printable ASCII and judged by length.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/docpulse/docpulse/internal/model"
)

const (
	// headerProbeLen is how many leading bytes are inspected for PDF tokens.
	headerProbeLen = 50

	// minTextChars and minTextWords are the cutoffs below which cleaned
	// text is classified as minimal rather than plain.
	minTextChars = 100
	minTextWords = 20

	// maxStructuralTokens is the number of "/Name " tokens tolerated in a
	// byte-filtered candidate before it is reclassified as binary.
	maxStructuralTokens = 10
)

// UnsupportedPlaceholder is the fixed text carried by unsupported-type
// results so callers always have something renderable.
const UnsupportedPlaceholder = "This file type is not supported for text extraction. " +
	"Upload a PDF, TXT or CSV file to enable content analysis."

// structuralTokenRe matches PDF name tokens like "/Catalog " or "/MediaBox "
// that survive the naive byte filter when the input is really binary.
var structuralTokenRe = regexp.MustCompile(`/[A-Z][A-Za-z]+ `)

// punctRunRe strips characters outside the whitelist kept during cleaning.
var punctRunRe = regexp.MustCompile(`[^A-Za-z0-9\s.,;:!?'"()$%&/@-]+`)

// whitespaceRe collapses whitespace runs.
var whitespaceRe = regexp.MustCompile(`\s+`)

// Result is the tagged outcome of classification. Text is populated only
// for plain-text and unsupported outcomes; the remaining fields carry
// provenance so downstream consumers can report without re-reading the
// original bytes.
type Result struct {
	Kind         model.ContentKind
	Text         string
	Filename     string
	DocumentID   string
	ClassifiedAt time.Time
}

// Classify turns raw bytes plus a declared extension into a typed text
// result. It never fails: every input resolves to one of the four kinds.
func Classify(data []byte, ext, filename, documentID string) Result {
	res := Result{
		Filename:     filename,
		DocumentID:   documentID,
		ClassifiedAt: time.Now().UTC(),
	}

	switch normalizeExt(ext) {
	case "txt", "csv":
		res.Kind = model.ContentKindPlainText
		res.Text = string(data)
		return res

	case "pdf":
		if hasPDFHeader(data) {
			res.Kind = model.ContentKindBinary
			return res
		}

		candidate := filterPrintable(data)
		if looksStructural(candidate) {
			res.Kind = model.ContentKindBinary
			return res
		}

		cleaned := clean(candidate)
		if len(cleaned) < minTextChars || countWords(cleaned) < minTextWords {
			res.Kind = model.ContentKindMinimalText
			return res
		}

		res.Kind = model.ContentKindPlainText
		res.Text = cleaned
		return res

	default:
		res.Kind = model.ContentKindUnsupported
		res.Text = UnsupportedPlaceholder
		return res
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// hasPDFHeader reports whether the first 50 bytes contain the PDF header
// token or a catalog-object token.
func hasPDFHeader(data []byte) bool {
	head := data
	if len(head) > headerProbeLen {
		head = head[:headerProbeLen]
	}
	s := string(head)
	return strings.Contains(s, "%PDF") || strings.Contains(s, "/Catalog")
}

// filterPrintable scans byte-by-byte keeping printable ASCII (32-126) and
// converting CR/LF to newlines.
func filterPrintable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		switch {
		case c == '\r' || c == '\n':
			b.WriteByte('\n')
		case c >= 32 && c <= 126:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// looksStructural reports whether a byte-filtered candidate still carries
// PDF structure: catalog/pages markers, or more than maxStructuralTokens
// name tokens.
func looksStructural(candidate string) bool {
	if strings.Contains(candidate, "/Catalog") || strings.Contains(candidate, "/Pages") {
		return true
	}
	return len(structuralTokenRe.FindAllString(candidate, maxStructuralTokens+1)) > maxStructuralTokens
}

func clean(s string) string {
	s = punctRunRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
