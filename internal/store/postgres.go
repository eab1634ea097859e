package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-verifier/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id                  TEXT PRIMARY KEY,
	filename            TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'uploaded',
	total_contacts      INTEGER NOT NULL DEFAULT 0,
	processed_contacts  INTEGER NOT NULL DEFAULT 0,
	verified_contacts   INTEGER NOT NULL DEFAULT 0,
	failed_contacts     INTEGER NOT NULL DEFAULT 0,
	progress_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_errors   TEXT,
	insight             TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at        TIMESTAMPTZ
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
	confidence_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_verified         BOOLEAN NOT NULL DEFAULT FALSE,
	is_duplicate        BOOLEAN NOT NULL DEFAULT FALSE,
	failure_reason      TEXT,
	evidence            JSONB,
	suggested_emails    JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_batch_id ON contacts(batch_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(verification_status);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectContactPG = `SELECT id, batch_id, first_name, last_name, email, phone, company,
	job_title, profile_url, verification_status, confidence_score, is_verified, is_duplicate,
	failure_reason, evidence, suggested_emails, created_at, updated_at FROM contacts`

func (s *PostgresStore) CreateContact(ctx context.Context, c *model.ContactRecord) error {
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
		return eris.Wrap(err, "postgres: marshal contact")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO contacts (
			id, batch_id, first_name, last_name, email, phone, company, job_title, profile_url,
			verification_status, confidence_score, is_verified, is_duplicate, failure_reason,
			evidence, suggested_emails, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.BatchID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.JobTitle, c.ProfileURL,
		string(c.Status), c.ConfidenceScore, c.IsVerified, c.IsDuplicate,
		nullIfEmpty(c.FailureReason), evidence, suggestions, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert contact")
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.ContactRecord, error) {
	row := s.pool.QueryRow(ctx, selectContactPG+` WHERE id = $1`, id)
	c, err := scanContactPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListContactsByBatch(ctx context.Context, batchID string) ([]model.ContactRecord, error) {
	rows, err := s.pool.Query(ctx, selectContactPG+` WHERE batch_id = $1 ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list contacts for batch %s", batchID)
	}
	defer rows.Close()

	var contacts []model.ContactRecord
	for rows.Next() {
		c, err := scanContactPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *model.ContactRecord) error {
	c.UpdatedAt = time.Now().UTC()

	evidence, suggestions, err := marshalContactJSON(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET
			first_name = $1, last_name = $2, email = $3, phone = $4, company = $5, job_title = $6,
			profile_url = $7, verification_status = $8, confidence_score = $9, is_verified = $10,
			is_duplicate = $11, failure_reason = $12, evidence = $13, suggested_emails = $14,
			updated_at = $15
		WHERE id = $16`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.JobTitle,
		c.ProfileURL, string(c.Status), c.ConfidenceScore, c.IsVerified,
		c.IsDuplicate, nullIfEmpty(c.FailureReason), evidence, suggestions,
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: contact %s not found", c.ID)
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, b *model.Batch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = model.BatchUploaded
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (
			id, filename, status, total_contacts, processed_contacts, verified_contacts,
			failed_contacts, progress_percentage, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Filename, string(b.Status), b.TotalContacts, b.ProcessedContacts,
		b.VerifiedContacts, b.FailedContacts, b.ProgressPercentage, b.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert batch")
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, status, total_contacts, processed_contacts, verified_contacts,
			failed_contacts, progress_percentage, processing_errors, insight, created_at, completed_at
		FROM batches WHERE id = $1`, id)

	var b model.Batch
	var status string
	var processingErrors, insight *string
	var completedAt *time.Time

	err := row.Scan(
		&b.ID, &b.Filename, &status, &b.TotalContacts, &b.ProcessedContacts,
		&b.VerifiedContacts, &b.FailedContacts, &b.ProgressPercentage,
		&processingErrors, &insight, &b.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}

	b.Status = model.BatchStatus(status)
	if processingErrors != nil {
		b.ProcessingErrors = *processingErrors
	}
	if insight != nil {
		b.Insight = *insight
	}
	b.CompletedAt = completedAt
	return &b, nil
}

func (s *PostgresStore) ClaimBatch(ctx context.Context, id string, total int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, total_contacts = $2, processed_contacts = 0,
			verified_contacts = 0, failed_contacts = 0, progress_percentage = 0
		WHERE id = $3 AND status = $4`,
		string(model.BatchProcessing), total, id, string(model.BatchUploaded),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim batch %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpdateBatchCounters(ctx context.Context, id string, processed, verified, failed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET processed_contacts = $1, verified_contacts = $2, failed_contacts = $3,
			progress_percentage = CASE WHEN total_contacts > 0
				THEN $1::double precision / total_contacts * 100 ELSE 0 END
		WHERE id = $4`,
		processed, verified, failed, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch counters %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: batch %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SetBatchStatus(ctx context.Context, id string, status model.BatchStatus, processingErrors string) error {
	var completedAt *time.Time
	if status.Terminal() {
		t := time.Now().UTC()
		completedAt = &t
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, processing_errors = $2, completed_at = $3 WHERE id = $4`,
		string(status), nullIfEmpty(processingErrors), completedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set batch status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: batch %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SetBatchInsight(ctx context.Context, id string, insight string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET insight = $1 WHERE id = $2`, insight, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set batch insight %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: batch %s not found", id)
	}
	return nil
}

func scanContactPG(row pgx.Row) (*model.ContactRecord, error) {
	var c model.ContactRecord
	var status string
	var failureReason *string
	var evidence, suggestions []byte

	err := row.Scan(
		&c.ID, &c.BatchID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company,
		&c.JobTitle, &c.ProfileURL, &status, &c.ConfidenceScore, &c.IsVerified, &c.IsDuplicate,
		&failureReason, &evidence, &suggestions, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = model.VerificationStatus(status)
	if failureReason != nil {
		c.FailureReason = *failureReason
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	if len(suggestions) > 0 {
		if err := json.Unmarshal(suggestions, &c.SuggestedEmails); err != nil {
			return nil, eris.Wrap(err, "unmarshal suggested emails")
		}
	}
	return &c, nil
}
