// Package ingest parses contact files (CSV, XLSX) into a new batch of
// pending contacts. Ingestion never validates contact data beyond header
// mapping; rows with neither email nor phone are imported anyway and fail
// later in the pipeline with an explicit reason.
package ingest

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/store"
)

// fieldAliases maps each canonical contact field to the header spellings it
// accepts. Matching is done on normalized header names, exact first, then
// substring.
var fieldAliases = map[string][]string{
	"first_name":  {"first_name", "firstname", "first", "fname", "given_name"},
	"last_name":   {"last_name", "lastname", "last", "lname", "surname", "family_name"},
	"email":       {"email", "email_address", "e_mail", "mail", "email_addr"},
	"phone":       {"phone", "phone_number", "telephone", "tel", "mobile", "cell"},
	"company":     {"company", "company_name", "organization", "org", "employer"},
	"job_title":   {"job_title", "title", "position", "role", "job", "designation"},
	"profile_url": {"profile_url", "linkedin_url", "linkedin", "li_url", "linkedin_profile"},
}

// canonicalOrder fixes the precedence when two canonical fields could claim
// the same column.
var canonicalOrder = []string{
	"first_name", "last_name", "email", "phone", "company", "job_title", "profile_url",
}

var nonWord = regexp.MustCompile(`[^\w]+`)

// Stats summarizes one import.
type Stats struct {
	TotalRows   int `json:"total_rows"`
	Imported    int `json:"imported"`
	EmptyRows   int `json:"empty_rows"`
	MissingBoth int `json:"missing_both"`
}

// Importer parses contact files and persists the resulting batch.
type Importer struct {
	store store.Store
}

func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// ImportFile parses the file at path, creates an uploaded batch, and creates
// one pending contact per non-empty row. The file format is chosen by
// extension: .xlsx uses the spreadsheet reader, everything else is treated
// as CSV.
func (im *Importer) ImportFile(ctx context.Context, path string) (*model.Batch, Stats, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSX(path)
	} else {
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, Stats{}, err
	}
	if len(rows) == 0 {
		return nil, Stats{}, eris.Errorf("ingest: %s is empty", filepath.Base(path))
	}

	mapping := mapHeader(rows[0])
	if len(mapping) == 0 {
		return nil, Stats{}, eris.Errorf("ingest: no recognizable columns in %s", filepath.Base(path))
	}

	now := time.Now().UTC()
	batch := &model.Batch{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(path),
		Status:    model.BatchUploaded,
		CreatedAt: now,
	}

	var (
		contacts []model.ContactRecord
		stats    Stats
	)
	for _, row := range rows[1:] {
		stats.TotalRows++
		// Distinct timestamps keep file order under the (created_at, id)
		// listing sort.
		rowTime := now.Add(time.Duration(stats.TotalRows) * time.Microsecond)
		contact, empty := rowToContact(batch.ID, mapping, row, rowTime)
		if empty {
			stats.EmptyRows++
			continue
		}
		if contact.Email == "" && contact.Phone == "" {
			stats.MissingBoth++
		}
		contacts = append(contacts, contact)
	}
	batch.TotalContacts = len(contacts)
	stats.Imported = len(contacts)

	if err := im.store.CreateBatch(ctx, batch); err != nil {
		return nil, stats, eris.Wrap(err, "ingest: create batch")
	}
	for i := range contacts {
		if err := im.store.CreateContact(ctx, &contacts[i]); err != nil {
			return nil, stats, eris.Wrapf(err, "ingest: create contact %s", contacts[i].ID)
		}
	}

	zap.L().Info("ingest: batch imported",
		zap.String("batch_id", batch.ID),
		zap.String("filename", batch.Filename),
		zap.Int("rows", stats.TotalRows),
		zap.Int("imported", stats.Imported),
		zap.Int("empty_rows", stats.EmptyRows),
		zap.Int("missing_both", stats.MissingBoth))

	return batch, stats, nil
}

// mapHeader resolves header cells to canonical fields. Each canonical field
// claims at most one column; each column feeds at most one field.
func mapHeader(header []string) map[int]string {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = strings.Trim(nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(cell)), "_"), "_")
	}

	mapping := make(map[int]string)
	claimed := make(map[int]bool)
	for _, field := range canonicalOrder {
		idx := findColumn(normalized, fieldAliases[field], claimed)
		if idx >= 0 {
			mapping[idx] = field
			claimed[idx] = true
		}
	}
	return mapping
}

func findColumn(normalized, aliases []string, claimed map[int]bool) int {
	for _, alias := range aliases {
		for i, col := range normalized {
			if !claimed[i] && col == alias {
				return i
			}
		}
	}
	for _, alias := range aliases {
		for i, col := range normalized {
			if !claimed[i] && strings.Contains(col, alias) {
				return i
			}
		}
	}
	return -1
}

func rowToContact(batchID string, mapping map[int]string, row []string, now time.Time) (model.ContactRecord, bool) {
	contact := model.ContactRecord{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	empty := true
	for idx, field := range mapping {
		if idx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[idx])
		if value == "" {
			continue
		}
		empty = false
		switch field {
		case "first_name":
			contact.FirstName = value
		case "last_name":
			contact.LastName = value
		case "email":
			contact.Email = value
		case "phone":
			contact.Phone = value
		case "company":
			contact.Company = value
		case "job_title":
			contact.JobTitle = value
		case "profile_url":
			contact.ProfileURL = value
		}
	}
	return contact, empty
}
