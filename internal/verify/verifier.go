package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/registry"
	"github.com/sells-group/contact-verifier/internal/store"
)

const missingDataReason = "missing required data (email or phone)"

// Verifier decides the fate of one contact: duplicate, verified, or failed.
// Collaborator errors never escape VerifyContact; only store write failures
// are returned, since those belong to the orchestration layer.
type Verifier struct {
	store    store.Store
	registry registry.IdentityRegistry
	email    *EmailVerifier
	phone    *PhoneVerifier
	regLimit *rate.Limiter
}

// NewVerifier wires the per-contact pipeline.
func NewVerifier(st store.Store, reg registry.IdentityRegistry, email *EmailVerifier, phone *PhoneVerifier, regLimit *rate.Limiter) *Verifier {
	return &Verifier{store: st, registry: reg, email: email, phone: phone, regLimit: regLimit}
}

// VerifyContact runs the state machine for one contact: processing, then one
// of verified, duplicate, or failed. The contact record is persisted at each
// transition. The returned error is non-nil only for store write failures.
func (v *Verifier) VerifyContact(ctx context.Context, contact *model.ContactRecord) (verdict *model.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("verify: panic during contact verification",
				zap.String("contact_id", contact.ID),
				zap.Any("panic", r))
			reason := fmt.Sprintf("internal error: %v", r)
			verdict = v.fail(contact, reason)
			err = v.store.UpdateContact(ctx, contact)
		}
	}()

	contact.Status = model.StatusProcessing
	if err := v.store.UpdateContact(ctx, contact); err != nil {
		return nil, err
	}

	// Contacts with neither channel fail before any external call.
	if !contact.HasRequiredData() {
		verdict := v.fail(contact, missingDataReason)
		return verdict, v.store.UpdateContact(ctx, contact)
	}

	verdict = v.decide(ctx, contact)
	return verdict, v.store.UpdateContact(ctx, contact)
}

// decide runs the registry lookup and, for new contacts, the channel
// aggregators. All collaborator errors degrade to evidence.
func (v *Verifier) decide(ctx context.Context, contact *model.ContactRecord) *model.Verdict {
	match, lookupErr := v.lookup(ctx, contact)

	if match != nil {
		contact.Status = model.StatusDuplicate
		contact.IsVerified = false
		contact.IsDuplicate = true
		contact.Evidence = append(contact.Evidence, model.StageResult{
			Stage:   "registry",
			Outcome: model.OutcomeFail,
			Detail: fmt.Sprintf("existing %s %s matched by %s",
				match.Source, match.ExternalID, match.MatchedBy),
		})
		return &model.Verdict{
			ContactID:     contact.ID,
			Decision:      model.DecisionDuplicate,
			Reason:        "contact already exists in registry",
			ShouldInclude: false,
			IsDuplicate:   true,
			Match:         match,
			Evidence:      contact.Evidence,
		}
	}

	registryStage := model.StageResult{Stage: "registry", Outcome: model.OutcomePass, Detail: "no existing record"}
	if lookupErr != nil {
		// Connectivity failure is inconclusive evidence, not a verdict.
		registryStage.Outcome = model.OutcomeInconclusive
		registryStage.Error = lookupErr.Error()
		zap.L().Warn("verify: registry lookup failed",
			zap.String("contact_id", contact.ID),
			zap.Error(lookupErr))
	}
	contact.Evidence = append(contact.Evidence, registryStage)

	verdict := &model.Verdict{
		ContactID:     contact.ID,
		Decision:      model.DecisionVerified,
		Reason:        "contact not found in registry",
		ShouldInclude: true,
	}

	// Channel scores are informational for new contacts; they feed the
	// confidence score but never gate the verified status.
	if contact.Email != "" {
		verdict.EmailResult = v.email.Verify(ctx, contact.Email, contact.FirstName, contact.LastName, contact.Company)
		contact.Evidence = append(contact.Evidence, verdict.EmailResult.Stages...)
		contact.SuggestedEmails = verdict.EmailResult.SuggestedEmails
	}
	if contact.Phone != "" {
		verdict.PhoneResult = v.phone.Verify(contact.Phone, contact.Company)
		contact.Evidence = append(contact.Evidence, verdict.PhoneResult.Stages...)
	}

	contact.Status = model.StatusVerified
	contact.IsVerified = true
	contact.IsDuplicate = false
	contact.ConfidenceScore = bestConfidence(verdict.EmailResult, verdict.PhoneResult)
	verdict.Evidence = contact.Evidence
	return verdict
}

// lookup consults the identity registry under its rate budget.
func (v *Verifier) lookup(ctx context.Context, contact *model.ContactRecord) (*model.RegistryMatch, error) {
	if v.regLimit != nil {
		if err := v.regLimit.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return registry.Lookup(ctx, v.registry, contact.Email, contact.Phone)
}

// Reverify resets a contact's pipeline-owned fields and runs the state
// machine again from scratch. History is replaced wholesale, never edited.
func (v *Verifier) Reverify(ctx context.Context, contactID string) (*model.Verdict, error) {
	contact, err := v.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	contact.ResetVerification()
	if err := v.store.UpdateContact(ctx, contact); err != nil {
		return nil, err
	}
	return v.VerifyContact(ctx, contact)
}

func (v *Verifier) fail(contact *model.ContactRecord, reason string) *model.Verdict {
	contact.Status = model.StatusFailed
	contact.IsVerified = false
	contact.IsDuplicate = false
	contact.FailureReason = reason
	return &model.Verdict{
		ContactID:     contact.ID,
		Decision:      model.DecisionFailed,
		Reason:        reason,
		ShouldInclude: false,
		Evidence:      contact.Evidence,
	}
}

// bestConfidence takes the strongest channel signal as the contact's score.
func bestConfidence(results ...*model.ChannelResult) float64 {
	best := 0.0
	for _, r := range results {
		if r != nil && r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}
