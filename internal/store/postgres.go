package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/docpulse/docpulse/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot cache paths.
var preparedStatements = map[string]string{
	"upsert_analysis": `INSERT INTO document_analyses (batch_id, payload, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (batch_id) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
	"get_analysis": `SELECT payload FROM document_analyses WHERE batch_id = $1`,
	"upsert_summary": `INSERT INTO document_summaries (document_id, filename, summary, degraded, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE SET
			filename = EXCLUDED.filename, summary = EXCLUDED.summary,
			degraded = EXCLUDED.degraded, created_at = EXCLUDED.created_at`,
	"get_summary": `SELECT document_id, filename, summary, degraded, created_at FROM document_summaries WHERE document_id = $1`,
	"insert_post": `INSERT INTO social_posts (id, external_post_id, text, author, author_handle, posted_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (external_post_id) DO NOTHING`,
	"list_posts": `SELECT id, external_post_id, text, author, author_handle, posted_at, fetched_at
		FROM social_posts WHERE author_handle = $1 ORDER BY posted_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS document_batches (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
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
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_analyses (
	batch_id   TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_summaries (
	document_id TEXT PRIMARY KEY,
	filename    TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL,
	degraded    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS social_posts (
	id               TEXT PRIMARY KEY,
	external_post_id TEXT NOT NULL UNIQUE,
	text             TEXT NOT NULL,
	author           TEXT NOT NULL,
	author_handle    TEXT NOT NULL,
	posted_at        TIMESTAMPTZ NOT NULL,
	fetched_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS social_accounts (
	handle          TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	last_fetched_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS post_analyses (
	username   TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_batch_id ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_social_posts_handle ON social_posts(author_handle, posted_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, b *model.DocumentBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_batches (id, name, description, owner_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Name, b.Description, b.OwnerID, b.CreatedAt, b.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert batch")
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.DocumentBatch, error) {
	var b model.DocumentBatch
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at FROM document_batches WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Description, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get batch")
	}
	return &b, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Extraction == "" {
		d.Extraction = model.ExtractionStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.BatchID, d.Filename, d.FileType, d.FilePath,
		nullableText(d.ExtractedText), string(d.Extraction), string(d.Kind), d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at
		 FROM documents WHERE id = $1`,
		id,
	)
	d, err := scanPgDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get document")
	}
	return d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, batchID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, filename, file_type, file_path, extracted_text, extraction, kind, created_at
		 FROM documents WHERE batch_id = $1 ORDER BY created_at, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanPgDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) SetDocumentExtraction(ctx context.Context, id string, status model.ExtractionStatus, kind model.ContentKind, text string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET extraction = $1, kind = $2, extracted_text = $3 WHERE id = $4`,
		string(status), string(kind), nullableText(text), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set extraction %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertAnalysis(ctx context.Context, a *model.DocumentAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	_, err = s.pool.Exec(ctx, "upsert_analysis", a.BatchID, payload, a.CreatedAt)
	return eris.Wrap(err, "postgres: upsert analysis")
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, batchID string) (*model.DocumentAnalysis, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, "get_analysis", batchID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "analysis for batch %s", batchID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get analysis")
	}
	var a model.DocumentAnalysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal analysis")
	}
	return &a, nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, batchID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_analyses WHERE batch_id = $1`, batchID)
	return eris.Wrap(err, "postgres: delete analysis")
}

func (s *PostgresStore) UpsertSummary(ctx context.Context, sum *model.DocumentSummary) error {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, "upsert_summary", sum.DocumentID, sum.Filename, sum.Summary, sum.Degraded, sum.CreatedAt)
	return eris.Wrap(err, "postgres: upsert summary")
}

func (s *PostgresStore) GetSummary(ctx context.Context, documentID string) (*model.DocumentSummary, error) {
	var sum model.DocumentSummary
	err := s.pool.QueryRow(ctx, "get_summary", documentID).Scan(&sum.DocumentID, &sum.Filename, &sum.Summary, &sum.Degraded, &sum.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "summary for document %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get summary")
	}
	return &sum, nil
}

func (s *PostgresStore) DeleteSummary(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_summaries WHERE document_id = $1`, documentID)
	return eris.Wrap(err, "postgres: delete summary")
}

func (s *PostgresStore) InsertPost(ctx context.Context, p *model.SocialPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, "insert_post",
		p.ID, p.ExternalPostID, p.Text, p.Author, p.AuthorHandle, p.PostedAt, p.FetchedAt,
	)
	return eris.Wrap(err, "postgres: insert post")
}

func (s *PostgresStore) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM social_posts`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count posts")
}

func (s *PostgresStore) ListPostsByHandle(ctx context.Context, handle string, limit int) ([]model.SocialPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "list_posts", handle, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list posts")
	}
	defer rows.Close()

	var posts []model.SocialPost
	for rows.Next() {
		var p model.SocialPost
		if err := rows.Scan(&p.ID, &p.ExternalPostID, &p.Text, &p.Author, &p.AuthorHandle, &p.PostedAt, &p.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan post")
		}
		posts = append(posts, p)
	}
	return posts, eris.Wrap(rows.Err(), "postgres: list posts iterate")
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, a *model.SocialAccount) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO social_accounts (handle, display_name, last_fetched_at, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (handle) DO UPDATE SET display_name = EXCLUDED.display_name`,
		a.Handle, a.DisplayName, a.LastFetchedAt, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: upsert account")
}

func (s *PostgresStore) GetAccount(ctx context.Context, handle string) (*model.SocialAccount, error) {
	var a model.SocialAccount
	err := s.pool.QueryRow(ctx,
		`SELECT handle, display_name, last_fetched_at, created_at FROM social_accounts WHERE handle = $1`,
		handle,
	).Scan(&a.Handle, &a.DisplayName, &a.LastFetchedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "account %s", handle)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get account")
	}
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.SocialAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT handle, display_name, last_fetched_at, created_at FROM social_accounts ORDER BY handle`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accounts")
	}
	defer rows.Close()

	var accounts []model.SocialAccount
	for rows.Next() {
		var a model.SocialAccount
		if err := rows.Scan(&a.Handle, &a.DisplayName, &a.LastFetchedAt, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "postgres: list accounts iterate")
}

func (s *PostgresStore) TouchAccountFetched(ctx context.Context, handle string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE social_accounts SET last_fetched_at = $1 WHERE handle = $2`,
		at, handle,
	)
	return eris.Wrapf(err, "postgres: touch account %s", handle)
}

func (s *PostgresStore) UpsertPostAnalysis(ctx context.Context, a *model.PostAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal post analysis")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO post_analyses (username, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		a.Username, payload, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: upsert post analysis")
}

func (s *PostgresStore) GetPostAnalysis(ctx context.Context, username string) (*model.PostAnalysis, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM post_analyses WHERE username = $1`, username,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "post analysis for %s", username)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get post analysis")
	}
	var a model.PostAnalysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal post analysis")
	}
	return &a, nil
}

func scanPgDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var text *string
	var status, kind string
	err := row.Scan(&d.ID, &d.BatchID, &d.Filename, &d.FileType, &d.FilePath, &text, &status, &kind, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if text != nil {
		d.ExtractedText = *text
	}
	d.Extraction = model.ExtractionStatus(status)
	d.Kind = model.ContentKind(kind)
	return &d, nil
}
