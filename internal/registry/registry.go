// Package registry answers "does this contact already exist?" against the
// external system of record.
package registry

import (
	"context"

	"github.com/sells-group/contact-verifier/internal/model"
)

// IdentityRegistry looks up existing records in the system of record. All
// methods return nil without error when nothing matches; an error means a
// genuine connectivity failure, never "not found".
type IdentityRegistry interface {
	FindContactByEmail(ctx context.Context, email string) (*model.RegistryMatch, error)
	FindContactByPhone(ctx context.Context, phone string) (*model.RegistryMatch, error)
	FindLeadByEmail(ctx context.Context, email string) (*model.RegistryMatch, error)
}

// Lookup runs the duplicate search in its fixed order: contact by email,
// contact by phone, lead by email. Empty inputs skip their lookups. The
// first match wins; only the last error is surfaced when every consulted
// lookup fails.
func Lookup(ctx context.Context, r IdentityRegistry, email, phone string) (*model.RegistryMatch, error) {
	var lastErr error

	if email != "" {
		match, err := r.FindContactByEmail(ctx, email)
		if err != nil {
			lastErr = err
		} else if match != nil {
			return match, nil
		}
	}

	if phone != "" {
		match, err := r.FindContactByPhone(ctx, phone)
		if err != nil {
			lastErr = err
		} else if match != nil {
			return match, nil
		}
	}

	if email != "" {
		match, err := r.FindLeadByEmail(ctx, email)
		if err != nil {
			lastErr = err
		} else if match != nil {
			return match, nil
		}
	}

	return nil, lastErr
}
