package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/docpulse/docpulse/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS document_batches (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	batch_id       TEXT NOT NULL REFERENCES document_batches(id),
	filename       TEXT NOT NULL,
	file_type      TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	extracted_text TEXT,
	extraction     TEXT NOT NULL DEFAULT 'pending',
	kind           TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS document_analyses (
	batch_id   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS document_summaries (
	document_id TEXT PRIMARY KEY,
	filename    TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL,
	degraded    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS social_posts (
	id               TEXT PRIMARY KEY,
	external_post_id TEXT NOT NULL UNIQUE,
	text             TEXT NOT NULL,
	author           TEXT NOT NULL,
	author_handle    TEXT NOT NULL,
	posted_at        DATETIME NOT NULL,
	fetched_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS social_accounts (
	handle          TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	last_fetched_at DATETIME,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS post_analyses (
	username   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_batch_id ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_social_posts_handle ON social_posts(author_handle, posted_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, b *model.DocumentBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_batches (id, name, description, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.OwnerID, b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert batch")
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.DocumentBatch, error) {
	var b model.DocumentBatch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at FROM document_batches WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Name, &b.Description, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get batch")
	}
	return &b, nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Extraction == "" {
		d.Extraction = model.ExtractionStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BatchID, d.Filename, d.FileType, d.FilePath,
		nullableText(d.ExtractedText), string(d.Extraction), string(d.Kind), d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at
		 FROM documents WHERE id = ?`,
		id,
	)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "document %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get document")
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, batchID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at
		 FROM documents WHERE batch_id = ? ORDER BY created_at, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) SetDocumentExtraction(ctx context.Context, id string, status model.ExtractionStatus, kind model.ContentKind, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET extraction = ?, kind = ?, extracted_text = ? WHERE id = ?`,
		string(status), string(kind), nullableText(text), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set extraction %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) UpsertAnalysis(ctx context.Context, a *model.DocumentAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_analyses (batch_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(batch_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		a.BatchID, string(payload), a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert analysis")
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, batchID string) (*model.DocumentAnalysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM document_analyses WHERE batch_id = ?`, batchID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "analysis for batch %s", batchID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analysis")
	}
	var a model.DocumentAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
	}
	return &a, nil
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, batchID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_analyses WHERE batch_id = ?`, batchID)
	return eris.Wrap(err, "sqlite: delete analysis")
}

func (s *SQLiteStore) UpsertSummary(ctx context.Context, sum *model.DocumentSummary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_summaries (document_id, filename, summary, degraded, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
			filename = excluded.filename,
			summary = excluded.summary,
			degraded = excluded.degraded,
			created_at = excluded.created_at`,
		sum.DocumentID, sum.Filename, sum.Summary, sum.Degraded, sum.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert summary")
}

func (s *SQLiteStore) GetSummary(ctx context.Context, documentID string) (*model.DocumentSummary, error) {
	var sum model.DocumentSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, filename, summary, degraded, created_at FROM document_summaries WHERE document_id = ?`,
		documentID,
	).Scan(&sum.DocumentID, &sum.Filename, &sum.Summary, &sum.Degraded, &sum.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "summary for document %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get summary")
	}
	return &sum, nil
}

func (s *SQLiteStore) DeleteSummary(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_summaries WHERE document_id = ?`, documentID)
	return eris.Wrap(err, "sqlite: delete summary")
}

func (s *SQLiteStore) InsertPost(ctx context.Context, p *model.SocialPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}
	// Duplicate external IDs are a silent no-op, which is what makes
	// overlapping fetch cycles safe.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO social_posts (id, external_post_id, text, author, author_handle, posted_at, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_post_id) DO NOTHING`,
		p.ID, p.ExternalPostID, p.Text, p.Author, p.AuthorHandle, p.PostedAt, p.FetchedAt,
	)
	return eris.Wrap(err, "sqlite: insert post")
}

func (s *SQLiteStore) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM social_posts`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count posts")
}

func (s *SQLiteStore) ListPostsByHandle(ctx context.Context, handle string, limit int) ([]model.SocialPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_post_id, text, author, author_handle, posted_at, fetched_at
		 FROM social_posts WHERE author_handle = ? ORDER BY posted_at DESC LIMIT ?`,
		handle, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list posts")
	}
	defer rows.Close()

	var posts []model.SocialPost
	for rows.Next() {
		var p model.SocialPost
		if err := rows.Scan(&p.ID, &p.ExternalPostID, &p.Text, &p.Author, &p.AuthorHandle, &p.PostedAt, &p.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan post")
		}
		posts = append(posts, p)
	}
	return posts, eris.Wrap(rows.Err(), "sqlite: list posts iterate")
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, a *model.SocialAccount) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO social_accounts (handle, display_name, last_fetched_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET display_name = excluded.display_name`,
		a.Handle, a.DisplayName, a.LastFetchedAt, a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert account")
}

func (s *SQLiteStore) GetAccount(ctx context.Context, handle string) (*model.SocialAccount, error) {
	var a model.SocialAccount
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT handle, display_name, last_fetched_at, created_at FROM social_accounts WHERE handle = ?`,
		handle,
	).Scan(&a.Handle, &a.DisplayName, &last, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "account %s", handle)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get account")
	}
	if last.Valid {
		a.LastFetchedAt = &last.Time
	}
	return &a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.SocialAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, display_name, last_fetched_at, created_at FROM social_accounts ORDER BY handle`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	var accounts []model.SocialAccount
	for rows.Next() {
		var a model.SocialAccount
		var last sql.NullTime
		if err := rows.Scan(&a.Handle, &a.DisplayName, &last, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		if last.Valid {
			a.LastFetchedAt = &last.Time
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "sqlite: list accounts iterate")
}

func (s *SQLiteStore) TouchAccountFetched(ctx context.Context, handle string, at time.Time) error {
	// Last write wins; overlapping cycles are fine.
	_, err := s.db.ExecContext(ctx,
		`UPDATE social_accounts SET last_fetched_at = ? WHERE handle = ?`,
		at, handle,
	)
	return eris.Wrapf(err, "sqlite: touch account %s", handle)
}

func (s *SQLiteStore) UpsertPostAnalysis(ctx context.Context, a *model.PostAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal post analysis")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO post_analyses (username, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		a.Username, string(payload), a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert post analysis")
}

func (s *SQLiteStore) GetPostAnalysis(ctx context.Context, username string) (*model.PostAnalysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM post_analyses WHERE username = ?`, username,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "post analysis for %s", username)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get post analysis")
	}
	var a model.PostAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal post analysis")
	}
	return &a, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var text sql.NullString
	var status, kind string
	err := row.Scan(&d.ID, &d.BatchID, &d.Filename, &d.FileType, &d.FilePath, &text, &status, &kind, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if text.Valid {
		d.ExtractedText = text.String
	}
	d.Extraction = model.ExtractionStatus(status)
	d.Kind = model.ContentKind(kind)
	return &d, nil
}
