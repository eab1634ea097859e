package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	Title     string `json:"Title" salesforce:"Title"`
	Account   struct {
		Name string `json:"Name" salesforce:"Name"`
	} `json:"Account" salesforce:"Account"`
}

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	Company   string `json:"Company" salesforce:"Company"`
	Title     string `json:"Title" salesforce:"Title"`
	Status    string `json:"Status" salesforce:"Status"`
}

const (
	contactFields = "Id, FirstName, LastName, Email, Phone, Account.Name, Title"
	leadFields    = "Id, FirstName, LastName, Email, Phone, Company, Title, Status"
)

// FindContactByEmail queries Salesforce for a Contact with the exact email.
// Returns nil if no contact is found.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Email = '%s' LIMIT 1",
		contactFields, escapeSoql(email),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by email %s", email))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// FindContactByPhone queries Salesforce for a Contact whose phone ends with
// the last 10 digits of the given number. Inputs with fewer than 10 digits
// cannot be matched reliably and return no match.
func FindContactByPhone(ctx context.Context, c Client, phone string) (*Contact, error) {
	digits := digitsOnly(phone)
	if len(digits) < 10 {
		return nil, nil
	}

	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Phone LIKE '%%%s%%' LIMIT 1",
		contactFields, digits[len(digits)-10:],
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by phone %s", phone))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// FindLeadByEmail queries Salesforce for a Lead with the exact email.
// Returns nil if no lead is found.
func FindLeadByEmail(ctx context.Context, c Client, email string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Email = '%s' LIMIT 1",
		leadFields, escapeSoql(email),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by email %s", email))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
