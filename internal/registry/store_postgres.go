package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"healthcert/internal/domain"
	"healthcert/pkg/platform/sentinel"
)

// PostgresStore persists documents and certificates in PostgreSQL.
// Per-document serialization comes from row-level guards: every status
// change is an UPDATE conditioned on the expected current status, so
// concurrent transitions on one document resolve to exactly one winner.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a connection pool for the given URL and verifies it.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the registry tables when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	issue_date   TIMESTAMPTZ,
	expiry_date  TIMESTAMPTZ,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS certificates (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL UNIQUE REFERENCES documents(id),
	issued_at         TIMESTAMPTZ NOT NULL,
	issued_by         TEXT NOT NULL,
	signature_payload TEXT NOT NULL,
	security_tier     TEXT NOT NULL,
	reference_payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS documents_status_idx ON documents(status);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc domain.Document) error {
	const q = `
INSERT INTO documents (id, type, name, description, issue_date, expiry_date, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q,
		doc.ID.String(), string(doc.Type), doc.Name, doc.Description,
		doc.IssueDate, doc.ExpiryDate, string(doc.Status), doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	const q = `
SELECT id, type, name, description, issue_date, expiry_date, status, created_at
FROM documents WHERE id = $1`
	return scanDocument(s.db.QueryRowContext(ctx, q, id.String()))
}

func (s *PostgresStore) ListDocumentsByStatus(ctx context.Context, status *domain.DocumentStatus) ([]domain.Document, error) {
	const base = `
SELECT id, type, name, description, issue_date, expiry_date, status, created_at
FROM documents`
	var (
		rows *sql.Rows
		err  error
	)
	if status == nil {
		rows, err = s.db.QueryContext(ctx, base+` ORDER BY created_at`)
	} else {
		rows, err = s.db.QueryContext(ctx, base+` WHERE status = $1 ORDER BY created_at`, string(*status))
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) SetDocumentStatus(ctx context.Context, id domain.DocumentID, from, to domain.DocumentStatus) error {
	if !domain.CanTransition(from, to) {
		return sentinel.ErrInvalidState
	}
	const q = `UPDATE documents SET status = $1 WHERE id = $2 AND status = $3`
	res, err := s.db.ExecContext(ctx, q, string(to), id.String(), string(from))
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	if affected == 1 {
		return nil
	}
	return s.missingOrInvalid(ctx, id)
}

func (s *PostgresStore) TransitionToIssued(ctx context.Context, id domain.DocumentID, cert IssuedCertificate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue transaction: %w", err)
	}
	defer tx.Rollback()

	const flip = `UPDATE documents SET status = $1, issue_date = $2 WHERE id = $3 AND status = $4`
	res, err := tx.ExecContext(ctx, flip,
		string(domain.DocumentStatusIssued), cert.IssuedAt, id.String(), string(domain.DocumentStatusPending))
	if err != nil {
		return fmt.Errorf("flip document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flip document status: %w", err)
	}
	if affected == 0 {
		return s.missingOrInvalid(ctx, id)
	}

	const insert = `
INSERT INTO certificates (id, document_id, issued_at, issued_by, signature_payload, security_tier, reference_payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insert,
		cert.ID.String(), cert.DocumentID.String(), cert.IssuedAt, cert.IssuedBy,
		cert.SignaturePayload, string(cert.SecurityTier), cert.ReferencePayload); err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issue transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCertificate(ctx context.Context, id domain.CertificateID) (IssuedCertificate, error) {
	const q = `
SELECT id, document_id, issued_at, issued_by, signature_payload, security_tier, reference_payload
FROM certificates WHERE id = $1`
	var (
		cert  IssuedCertificate
		docID string
		tier  string
		cid   string
	)
	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(
		&cid, &docID, &cert.IssuedAt, &cert.IssuedBy,
		&cert.SignaturePayload, &tier, &cert.ReferencePayload)
	if errors.Is(err, sql.ErrNoRows) {
		return IssuedCertificate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return IssuedCertificate{}, fmt.Errorf("get certificate: %w", err)
	}
	cert.ID = domain.CertificateID(cid)
	cert.DocumentID = domain.DocumentID(docID)
	cert.SecurityTier = domain.SecurityTier(tier)
	return cert, nil
}

// missingOrInvalid distinguishes "no such document" from "wrong status" after
// a zero-row conditional update.
func (s *PostgresStore) missingOrInvalid(ctx context.Context, id domain.DocumentID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check document existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc        domain.Document
		id         string
		docType    string
		status     string
		issueDate  sql.NullTime
		expiryDate sql.NullTime
	)
	err := row.Scan(&id, &docType, &doc.Name, &doc.Description, &issueDate, &expiryDate, &status, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = domain.DocumentID(id)
	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	if issueDate.Valid {
		doc.IssueDate = &issueDate.Time
	}
	if expiryDate.Valid {
		doc.ExpiryDate = &expiryDate.Time
	}
	return doc, nil
}
