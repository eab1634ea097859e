// Package insight produces a short prose narrative for a completed batch.
// It is best-effort: a failed or empty narrative never affects batch status
// or counters.
package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/pkg/anthropic"
)

const systemPrompt = `You are summarizing the outcome of a contact verification batch for a sales operations team. Write 2-4 sentences of plain prose: overall quality of the list, how many contacts verified, how many were duplicates of existing CRM records, and any notable failure patterns. No headings, no bullet points, no JSON.`

// maxSampleContacts bounds the per-contact detail included in the prompt.
const maxSampleContacts = 25

// narrativeTemperature keeps summaries factual rather than creative.
const narrativeTemperature = 0.2

// Generator asks Claude for a narrative summary of a finished batch.
type Generator struct {
	client anthropic.Client
	model  string
}

func New(client anthropic.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// BatchInsight builds a compact description of the batch outcome and returns
// Claude's narrative. The returned text is trimmed; empty text means the
// model produced nothing usable.
func (g *Generator) BatchInsight(ctx context.Context, batch *model.Batch, contacts []model.ContactRecord) (string, error) {
	temp := narrativeTemperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   512,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(batch, contacts)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "insight: create message")
	}
	resp.Usage.LogCost(g.model, "batch_insight")

	return strings.TrimSpace(resp.Text()), nil
}

func buildPrompt(batch *model.Batch, contacts []model.ContactRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s (%s): %d contacts, %d verified, %d failed, success rate %.1f%%.\n",
		batch.ID, batch.Filename, batch.TotalContacts, batch.VerifiedContacts,
		batch.FailedContacts, batch.SuccessRate())

	duplicates := 0
	reasons := map[string]int{}
	for _, c := range contacts {
		if c.IsDuplicate {
			duplicates++
		}
		if c.FailureReason != "" {
			reasons[c.FailureReason]++
		}
	}
	fmt.Fprintf(&b, "Duplicates of existing CRM records: %d.\n", duplicates)
	if len(reasons) > 0 {
		b.WriteString("Failure reasons:\n")
		for reason, n := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", reason, n)
		}
	}

	b.WriteString("Sample outcomes:\n")
	for i, c := range contacts {
		if i >= maxSampleContacts {
			fmt.Fprintf(&b, "- ... and %d more\n", len(contacts)-maxSampleContacts)
			break
		}
		fmt.Fprintf(&b, "- %s: status=%s confidence=%.2f\n", describe(c), c.Status, c.ConfidenceScore)
	}
	return b.String()
}

func describe(c model.ContactRecord) string {
	if name := c.FullName(); name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	if c.Phone != "" {
		return c.Phone
	}
	return c.ID
}
