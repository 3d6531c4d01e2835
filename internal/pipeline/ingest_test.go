package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/store"
)

func newTestIngestor(t *testing.T, st store.Store) *Ingestor {
	t.Helper()
	return NewIngestor(st, config.IngestConfig{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 10 * 1024 * 1024,
	})
}

func TestIngest_UnsupportedFileType(t *testing.T) {
	st := newTestStore(t)
	in := newTestIngestor(t, st)
	b := seedBatch(t, st)

	_, err := in.Ingest(context.Background(), b.ID, "malware.exe", []byte("nope"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = in.Ingest(context.Background(), b.ID, "noextension", []byte("nope"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestIngest_FileTooLarge(t *testing.T) {
	st := newTestStore(t)
	in := NewIngestor(st, config.IngestConfig{UploadDir: t.TempDir(), MaxUploadBytes: 16})
	b := seedBatch(t, st)

	_, err := in.Ingest(context.Background(), b.ID, "big.txt", []byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestIngest_UnknownBatch(t *testing.T) {
	st := newTestStore(t)
	in := newTestIngestor(t, st)

	_, err := in.Ingest(context.Background(), "missing", "note.txt", []byte("hello"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIngest_PlainTextSynchronous(t *testing.T) {
	st := newTestStore(t)
	in := newTestIngestor(t, st)
	b := seedBatch(t, st)

	text := strings.Repeat("markets rallied on improving inflation data today. ", 10)
	doc, err := in.Ingest(context.Background(), b.ID, "notes.txt", []byte(text))
	require.NoError(t, err)

	assert.Equal(t, model.ExtractionStatusExtracted, doc.Extraction)
	assert.Equal(t, model.ContentKindPlainText, doc.Kind)
	assert.Contains(t, doc.ExtractedText, "markets rallied")

	// The raw upload is persisted for later multimodal use.
	raw, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, text, string(raw))

	stored, err := st.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusExtracted, stored.Extraction)
}

func TestIngest_BinaryAsynchronous(t *testing.T) {
	st := newTestStore(t)
	in := newTestIngestor(t, st)
	b := seedBatch(t, st)

	doc, err := in.Ingest(context.Background(), b.ID, "report.pdf", []byte("%PDF-1.4 stream gibberish"))
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusPending, doc.Extraction)

	require.Eventually(t, func() bool {
		stored, err := st.GetDocument(context.Background(), doc.ID)
		return err == nil && stored.Extraction == model.ExtractionStatusExtracted
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := st.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentKindBinary, stored.Kind)
}

func TestIngest_CSVClassifiedSynchronously(t *testing.T) {
	st := newTestStore(t)
	in := newTestIngestor(t, st)
	b := seedBatch(t, st)

	csv := "ticker,target,rating\n" + strings.Repeat("AAPL,250,buy with conviction into year end\n", 20)
	doc, err := in.Ingest(context.Background(), b.ID, "targets.csv", []byte(csv))
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusExtracted, doc.Extraction)
	assert.Equal(t, model.ContentKindPlainText, doc.Kind)
}
