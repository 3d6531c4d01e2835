package model

import "time"

// ExtractionStatus represents the state of a document's text extraction.
type ExtractionStatus string

const (
	ExtractionStatusPending    ExtractionStatus = "pending"
	ExtractionStatusExtracting ExtractionStatus = "extracting"
	ExtractionStatusExtracted  ExtractionStatus = "extracted"
	ExtractionStatusFailed     ExtractionStatus = "failed"
)

// ContentKind is the typed outcome of content classification. Downstream
// logic branches on this tag rather than searching the extracted text for
// sentinel strings.
type ContentKind string

const (
	ContentKindPlainText   ContentKind = "plain_text"
	ContentKindBinary      ContentKind = "binary"
	ContentKindMinimalText ContentKind = "minimal_text"
	ContentKindUnsupported ContentKind = "unsupported"
)

// Document is a single uploaded file belonging to a batch. ExtractedText is
// empty until extraction completes; once written it is always a fully-formed
// classified string.
type Document struct {
	ID            string           `json:"id"`
	BatchID       string           `json:"batch_id"`
	Filename      string           `json:"filename"`
	FileType      string           `json:"file_type"`
	FilePath      string           `json:"file_path"`
	ExtractedText string           `json:"extracted_text,omitempty"`
	Extraction    ExtractionStatus `json:"extraction"`
	Kind          ContentKind      `json:"kind,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// DocumentBatch is a named collection of documents analyzed as one unit.
type DocumentBatch struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
