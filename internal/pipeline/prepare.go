package pipeline

import (
	"fmt"
	"strings"

	"github.com/docpulse/docpulse/internal/model"
)

// truncationMarker is appended to any document content that was cut.
const truncationMarker = "\n[content truncated]"

// Fixed notices substituted for documents that yielded no analyzable text.
// They are short by construction and therefore exempt from per-document
// truncation.
const (
	binaryNotice      = "This document is a binary file and its text could not be extracted."
	minimalNotice     = "This document contained too little readable text to analyze."
	unsupportedNotice = "This document's file type is not supported for text analysis."
)

// BatchDocument is one classified document going into batch preparation.
// Truncated is mutated by PrepareBatch when content is cut.
type BatchDocument struct {
	Filename  string
	Kind      model.ContentKind
	Text      string
	Truncated bool
}

// PreparedBatch is the combined prompt body for a batch. Analyzable is false
// when there were no documents, or none carried extractable text; in that
// case the analysis service must not be called.
type PreparedBatch struct {
	Text       string
	Documents  []BatchDocument
	Analyzable bool
}

// PrepareBatch assembles a size-bounded prompt body from classified document
// texts. Plain-text documents are truncated to maxPerDocument characters;
// if the running total still exceeds maxTotal, every plain-text document is
// shrunk by a uniform ratio. The per-document floor rounding in that pass
// can leave the final total marginally above maxTotal; that slack is an
// accepted tolerance, not corrected for.
func PrepareBatch(docs []BatchDocument, maxPerDocument, maxTotal int) PreparedBatch {
	if len(docs) == 0 {
		return PreparedBatch{Analyzable: false}
	}

	contents := make([]string, len(docs))
	total := 0
	anyPlain := false

	for i, d := range docs {
		if d.Kind != model.ContentKindPlainText {
			contents[i] = noticeFor(d.Kind)
			total += len(contents[i])
			continue
		}
		anyPlain = true

		c := d.Text
		if maxPerDocument > 0 && len(c) > maxPerDocument {
			c = c[:maxPerDocument]
			docs[i].Truncated = true
			total += len(truncationMarker)
		}
		contents[i] = c
		total += len(c)
	}

	if !anyPlain {
		return PreparedBatch{Documents: docs, Analyzable: false}
	}

	if maxTotal > 0 && total > maxTotal {
		ratio := float64(maxTotal) / float64(total)
		total = 0
		for i, d := range docs {
			if d.Kind != model.ContentKindPlainText {
				total += len(contents[i])
				continue
			}
			newLen := int(float64(len(contents[i])) * ratio)
			contents[i] = contents[i][:newLen]
			docs[i].Truncated = true
			total += newLen + len(truncationMarker)
		}
	}

	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		flag := ""
		if docs[i].Truncated {
			flag = " (truncated)"
		}
		fmt.Fprintf(&b, "--- Document: %s%s ---\n", d.Filename, flag)
		b.WriteString(contents[i])
		if d.Kind == model.ContentKindPlainText && docs[i].Truncated {
			b.WriteString(truncationMarker)
		}
	}

	return PreparedBatch{Text: b.String(), Documents: docs, Analyzable: true}
}

func noticeFor(kind model.ContentKind) string {
	switch kind {
	case model.ContentKindBinary:
		return binaryNotice
	case model.ContentKindMinimalText:
		return minimalNotice
	default:
		return unsupportedNotice
	}
}
