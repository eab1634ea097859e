package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-verifier/internal/model"
)

func newMockPG(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, &PostgresStore{pool: mock}
}

func TestPostgres_Migrate(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batches").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateContact(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("c1", "b1", "John", "Smith", "john@acme.com", "+14155550123", "Acme", "CTO", "",
			"pending", 0.0, false, false, nil, nil, nil, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	contact := &model.ContactRecord{
		ID:        "c1",
		BatchID:   "b1",
		FirstName: "John",
		LastName:  "Smith",
		Email:     "john@acme.com",
		Phone:     "+14155550123",
		Company:   "Acme",
		JobTitle:  "CTO",
	}
	require.NoError(t, st.CreateContact(context.Background(), contact))
	assert.Equal(t, model.StatusPending, contact.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetContactUnmarshalsEvidence(t *testing.T) {
	mock, st := newMockPG(t)
	now := time.Now().UTC()
	evidence := []byte(`[{"stage":"syntax","outcome":"pass","weight":0.2}]`)

	mock.ExpectQuery("SELECT (.+) FROM contacts WHERE id").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "batch_id", "first_name", "last_name", "email", "phone", "company",
			"job_title", "profile_url", "verification_status", "confidence_score",
			"is_verified", "is_duplicate", "failure_reason", "evidence", "suggested_emails",
			"created_at", "updated_at",
		}).AddRow(
			"c1", "b1", "John", "Smith", "john@acme.com", "", "", "", "", "verified", 0.95,
			true, false, (*string)(nil), evidence, []byte(nil), now, now,
		))

	contact, err := st.GetContact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, contact.Status)
	assert.True(t, contact.IsVerified)
	require.Len(t, contact.Evidence, 1)
	assert.Equal(t, "syntax", contact.Evidence[0].Stage)
	assert.Equal(t, model.OutcomePass, contact.Evidence[0].Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateContactNotFound(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("UPDATE contacts SET").
		WithArgs("", "", "", "", "", "", "", "", 0.0, false, false,
			nil, nil, nil, pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateContact(context.Background(), &model.ContactRecord{ID: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ClaimBatch(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("UPDATE batches SET status").
		WithArgs("processing", 5, "b1", "uploaded").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	claimed, err := st.ClaimBatch(context.Background(), "b1", 5)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ClaimBatchAlreadyClaimed(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("UPDATE batches SET status").
		WithArgs("processing", 5, "b1", "uploaded").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	claimed, err := st.ClaimBatch(context.Background(), "b1", 5)
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateBatchCounters(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("UPDATE batches SET processed_contacts").
		WithArgs(3, 2, 1, "b1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateBatchCounters(context.Background(), "b1", 3, 2, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBatch(t *testing.T) {
	mock, st := newMockPG(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM batches WHERE id").
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filename", "status", "total_contacts", "processed_contacts",
			"verified_contacts", "failed_contacts", "progress_percentage",
			"processing_errors", "insight", "created_at", "completed_at",
		}).AddRow(
			"b1", "leads.csv", "processing", 10, 4, 3, 1, 40.0,
			(*string)(nil), (*string)(nil), now, (*time.Time)(nil),
		))

	batch, err := st.GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessing, batch.Status)
	assert.Equal(t, 10, batch.TotalContacts)
	assert.Equal(t, 4, batch.ProcessedContacts)
	assert.InDelta(t, 40.0, batch.ProgressPercentage, 1e-9)
	assert.Nil(t, batch.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetBatchStatusQueryError(t *testing.T) {
	mock, st := newMockPG(t)
	mock.ExpectExec("UPDATE batches SET status").
		WithArgs("failed", "boom", pgxmock.AnyArg(), "b1").
		WillReturnError(errors.New("connection refused"))

	err := st.SetBatchStatus(context.Background(), "b1", model.BatchFailed, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}
