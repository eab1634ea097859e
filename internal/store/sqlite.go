package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-verifier/internal/model"
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
CREATE TABLE IF NOT EXISTS batches (
	id                  TEXT PRIMARY KEY,
	filename            TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'uploaded',
	total_contacts      INTEGER NOT NULL DEFAULT 0,
	processed_contacts  INTEGER NOT NULL DEFAULT 0,
	verified_contacts   INTEGER NOT NULL DEFAULT 0,
	failed_contacts     INTEGER NOT NULL DEFAULT 0,
	progress_percentage REAL NOT NULL DEFAULT 0,
	processing_errors   TEXT,
	insight             TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at        DATETIME
);

CREATE TABLE IF NOT EXISTS contacts (
	id                  TEXT PRIMARY KEY,
	batch_id            TEXT NOT NULL REFERENCES batches(id),
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	company             TEXT NOT NULL DEFAULT '',
	job_title           TEXT NOT NULL DEFAULT '',
	profile_url         TEXT NOT NULL DEFAULT '',
	verification_status TEXT NOT NULL DEFAULT 'pending',
	confidence_score    REAL NOT NULL DEFAULT 0,
	is_verified         INTEGER NOT NULL DEFAULT 0,
	is_duplicate        INTEGER NOT NULL DEFAULT 0,
	failure_reason      TEXT,
	evidence            TEXT,
	suggested_emails    TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_batch_id ON contacts(batch_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(verification_status);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c *model.ContactRecord) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.StatusPending
	}

	evidence, suggestions, err := marshalContactJSON(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (
			id, batch_id, first_name, last_name, email, phone, company, job_title, profile_url,
			verification_status, confidence_score, is_verified, is_duplicate, failure_reason,
			evidence, suggested_emails, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BatchID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.JobTitle, c.ProfileURL,
		string(c.Status), c.ConfidenceScore, boolToInt(c.IsVerified), boolToInt(c.IsDuplicate),
		nullIfEmpty(c.FailureReason), evidence, suggestions, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert contact")
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.ContactRecord, error) {
	row := s.db.QueryRowContext(ctx, selectContactSQLite+` WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListContactsByBatch(ctx context.Context, batchID string) ([]model.ContactRecord, error) {
	// Stable insertion order for the orchestrator loop.
	rows, err := s.db.QueryContext(ctx, selectContactSQLite+` WHERE batch_id = ? ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list contacts for batch %s", batchID)
	}
	defer rows.Close()

	var contacts []model.ContactRecord
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: iterate contacts")
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c *model.ContactRecord) error {
	c.UpdatedAt = time.Now().UTC()

	evidence, suggestions, err := marshalContactJSON(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET
			first_name = ?, last_name = ?, email = ?, phone = ?, company = ?, job_title = ?, profile_url = ?,
			verification_status = ?, confidence_score = ?, is_verified = ?, is_duplicate = ?,
			failure_reason = ?, evidence = ?, suggested_emails = ?, updated_at = ?
		WHERE id = ?`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.JobTitle, c.ProfileURL,
		string(c.Status), c.ConfidenceScore, boolToInt(c.IsVerified), boolToInt(c.IsDuplicate),
		nullIfEmpty(c.FailureReason), evidence, suggestions, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %s", c.ID)
	}
	return checkRowsAffected(res, "contact", c.ID)
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, b *model.Batch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = model.BatchUploaded
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (
			id, filename, status, total_contacts, processed_contacts, verified_contacts,
			failed_contacts, progress_percentage, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Filename, string(b.Status), b.TotalContacts, b.ProcessedContacts,
		b.VerifiedContacts, b.FailedContacts, b.ProgressPercentage, b.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert batch")
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, total_contacts, processed_contacts, verified_contacts,
			failed_contacts, progress_percentage, processing_errors, insight, created_at, completed_at
		FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) ClaimBatch(ctx context.Context, id string, total int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, total_contacts = ?, processed_contacts = 0,
			verified_contacts = 0, failed_contacts = 0, progress_percentage = 0
		WHERE id = ? AND status = ?`,
		string(model.BatchProcessing), total, id, string(model.BatchUploaded),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim batch %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) UpdateBatchCounters(ctx context.Context, id string, processed, verified, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET processed_contacts = ?, verified_contacts = ?, failed_contacts = ?,
			progress_percentage = CASE WHEN total_contacts > 0
				THEN CAST(? AS REAL) / total_contacts * 100 ELSE 0 END
		WHERE id = ?`,
		processed, verified, failed, processed, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch counters %s", id)
	}
	return checkRowsAffected(res, "batch", id)
}

func (s *SQLiteStore) SetBatchStatus(ctx context.Context, id string, status model.BatchStatus, processingErrors string) error {
	var completedAt any
	if status.Terminal() {
		completedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, processing_errors = ?, completed_at = ? WHERE id = ?`,
		string(status), nullIfEmpty(processingErrors), completedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set batch status %s", id)
	}
	return checkRowsAffected(res, "batch", id)
}

func (s *SQLiteStore) SetBatchInsight(ctx context.Context, id string, insight string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET insight = ? WHERE id = ?`, insight, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set batch insight %s", id)
	}
	return checkRowsAffected(res, "batch", id)
}

const selectContactSQLite = `SELECT id, batch_id, first_name, last_name, email, phone, company,
	job_title, profile_url, verification_status, confidence_score, is_verified, is_duplicate,
	failure_reason, evidence, suggested_emails, created_at, updated_at FROM contacts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*model.ContactRecord, error) {
	var c model.ContactRecord
	var status string
	var isVerified, isDuplicate int
	var failureReason, evidence, suggestions sql.NullString

	err := row.Scan(
		&c.ID, &c.BatchID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company,
		&c.JobTitle, &c.ProfileURL, &status, &c.ConfidenceScore, &isVerified, &isDuplicate,
		&failureReason, &evidence, &suggestions, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = model.VerificationStatus(status)
	c.IsVerified = isVerified != 0
	c.IsDuplicate = isDuplicate != 0
	c.FailureReason = failureReason.String
	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &c.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	if suggestions.Valid && suggestions.String != "" {
		if err := json.Unmarshal([]byte(suggestions.String), &c.SuggestedEmails); err != nil {
			return nil, eris.Wrap(err, "unmarshal suggested emails")
		}
	}
	return &c, nil
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var b model.Batch
	var status string
	var processingErrors, insight sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.Filename, &status, &b.TotalContacts, &b.ProcessedContacts,
		&b.VerifiedContacts, &b.FailedContacts, &b.ProgressPercentage,
		&processingErrors, &insight, &b.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = model.BatchStatus(status)
	b.ProcessingErrors = processingErrors.String
	b.Insight = insight.String
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

func marshalContactJSON(c *model.ContactRecord) (evidence, suggestions any, err error) {
	if len(c.Evidence) > 0 {
		data, err := json.Marshal(c.Evidence)
		if err != nil {
			return nil, nil, err
		}
		evidence = string(data)
	}
	if len(c.SuggestedEmails) > 0 {
		data, err := json.Marshal(c.SuggestedEmails)
		if err != nil {
			return nil, nil, err
		}
		suggestions = string(data)
	}
	return evidence, suggestions, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
