/*
Package reconcile contains the daily payment reconciliation logic: which
prepaid certificates apply to which unpaid lessons, in what order, and who
still owes money afterwards.

PIPELINE (per staff member, per client appointment of the day):
  1. EligibleCertificates filters and orders the client's certificate pool
  2. BuildUnpaidLedger computes the unpaid-lesson queue over the trailing
     window
  3. Allocate consumes certificate balance against the queue, marking
     lessons paid through the Gateway
  4. BuildUnpaidLedger runs again; a non-empty residual puts the client on
     the staff member's report

The remote scheduling system is the sole source of truth for payment
state. Nothing here simulates post-mutation state locally; step 4 always
re-fetches.

SEE ALSO:
  - acuity: the Gateway implementation
  - notify: report delivery
*/
package reconcile

import (
	"context"
	"time"

	"github.com/warp/lesson-reconciler/acuity"
)

// Gateway is the slice of the scheduling API the reconciler needs.
// *acuity.Client satisfies it; tests substitute fakes.
type Gateway interface {
	ListAppointments(ctx context.Context, minDate, maxDate time.Time, calendarID int64, clientEmail string) ([]acuity.Appointment, error)
	ListCertificates(ctx context.Context, clientEmail string) ([]acuity.Certificate, error)
	GetOrder(ctx context.Context, orderID int64) (acuity.Order, error)
	ApplyCertificate(ctx context.Context, appointmentID int64, certificateCode string) error
}

// dateOnly truncates a timestamp to day granularity. Expiration checks and
// "today" comparisons all happen at this granularity.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
