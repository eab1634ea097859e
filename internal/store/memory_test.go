package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-verifier/internal/model"
)

func TestMemStore_ContactRoundTrip(t *testing.T) {
	st := NewMem()
	ctx := context.Background()

	require.NoError(t, st.CreateBatch(ctx, &model.Batch{ID: "b1", Status: model.BatchUploaded}))
	require.NoError(t, st.CreateContact(ctx, &model.ContactRecord{ID: "c1", BatchID: "b1", Email: "a@b.com"}))

	got, err := st.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)

	// returned copy is detached from the stored record
	got.Email = "mutated@b.com"
	again, err := st.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", again.Email)

	got.Email = "updated@b.com"
	require.NoError(t, st.UpdateContact(ctx, got))
	again, err = st.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "updated@b.com", again.Email)
}

func TestMemStore_NotFoundErrors(t *testing.T) {
	st := NewMem()
	ctx := context.Background()

	_, err := st.GetContact(ctx, "nope")
	require.Error(t, err)
	_, err = st.GetBatch(ctx, "nope")
	require.Error(t, err)
	require.Error(t, st.UpdateContact(ctx, &model.ContactRecord{ID: "nope"}))
	require.Error(t, st.UpdateBatchCounters(ctx, "nope", 1, 1, 0))
}

func TestMemStore_ListOrder(t *testing.T) {
	st := NewMem()
	ctx := context.Background()
	require.NoError(t, st.CreateBatch(ctx, &model.Batch{ID: "b1"}))

	base := time.Now().UTC()
	require.NoError(t, st.CreateContact(ctx, &model.ContactRecord{ID: "z", BatchID: "b1", CreatedAt: base}))
	require.NoError(t, st.CreateContact(ctx, &model.ContactRecord{ID: "a", BatchID: "b1", CreatedAt: base.Add(time.Millisecond)}))

	contacts, err := st.ListContactsByBatch(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "z", contacts[0].ID)
	assert.Equal(t, "a", contacts[1].ID)
}

func TestMemStore_ClaimBatchCAS(t *testing.T) {
	st := NewMem()
	ctx := context.Background()
	require.NoError(t, st.CreateBatch(ctx, &model.Batch{ID: "b1", Status: model.BatchUploaded}))

	claimed, err := st.ClaimBatch(ctx, "b1", 3)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = st.ClaimBatch(ctx, "b1", 3)
	require.NoError(t, err)
	assert.False(t, claimed)

	batch, err := st.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessing, batch.Status)
	assert.Equal(t, 3, batch.TotalContacts)
}

func TestMemStore_SetBatchStatusCompletedAt(t *testing.T) {
	st := NewMem()
	ctx := context.Background()
	require.NoError(t, st.CreateBatch(ctx, &model.Batch{ID: "b1", Status: model.BatchUploaded}))

	require.NoError(t, st.SetBatchStatus(ctx, "b1", model.BatchCompleted, ""))

	batch, err := st.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, batch.Status)
	assert.NotNil(t, batch.CompletedAt)
}
