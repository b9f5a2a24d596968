package acuity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WIRE TYPES - Shapes returned by the scheduling API
// =============================================================================

// Appointment is a read-only snapshot of a booked lesson. Payment state is
// mutated remotely via Client.ApplyCertificate; local copies are never
// updated in place. Re-fetch to observe post-mutation state.
type Appointment struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Paid        string `json:"paid"` // "yes" or "no"
	Certificate string `json:"certificate"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Datetime    string `json:"datetime"`
}

// apptTimeFormat matches the provider's datetime field, e.g.
// "2026-01-05T14:00:00-0600".
const apptTimeFormat = "2006-01-02T15:04:05-0700"

func (a Appointment) IsPaid() bool { return a.Paid == "yes" }

// StartTime parses the full appointment timestamp.
func (a Appointment) StartTime() (time.Time, error) {
	t, err := time.Parse(apptTimeFormat, a.Datetime)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, a.Datetime)
}

// Certificate is a prepaid balance of lesson-minutes. The Code field is the
// identifier the API expects when applying the certificate to an
// appointment. Email may be empty; the originating order carries it.
type Certificate struct {
	Code             string `json:"certificate"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	RemainingMinutes string `json:"remainingMinutes"`
	Expiration       string `json:"expiration"`
	OrderID          int64  `json:"orderID"`
}

const expirationFormat = "2006-01-02"

// Remaining returns the remaining balance in minutes. An empty or
// unparsable wire value counts as zero.
func (c Certificate) Remaining() decimal.Decimal {
	s := strings.TrimSpace(c.RemainingMinutes)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ExpiresOn parses the certificate expiration date (day granularity).
func (c Certificate) ExpiresOn() (time.Time, error) {
	return time.Parse(expirationFormat, c.Expiration)
}

// Order is the purchase record a certificate originates from.
type Order struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
