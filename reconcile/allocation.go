/*
allocation.go - The certificate allocation engine

ALGORITHM:
  Lessons and certificates are partitioned into two duration classes by the
  literal substring "30" in the lesson type / certificate name; everything
  else is the 60-minute class. The classification is deliberately textual:
  the provider's data does not guarantee a numeric duration field, so the
  string rule is the contract.

  Within each class, a single forward cursor walks the unpaid lessons
  (already oldest-first). Certificates are consumed in their pre-sorted
  oldest-expiring-first order: each keeps a local remaining-minutes counter
  and funds lessons while the counter is positive and lessons remain,
  decrementing by the fixed unit cost per lesson. A balance that does not
  divide evenly by the unit drives the counter negative on its last lesson;
  termination is on positivity, not exact zero.

  The cursor never revisits a lesson. Leftover certificate balance is left
  unconsumed; the remote system owns the real balance and is not updated
  here beyond the per-lesson payment mutations. Leftover lessons stay
  unpaid and surface later through the unpaid ledger.
*/
package reconcile

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/acuity"
)

// shortClassMarker assigns a lesson or certificate to the 30-minute class.
const shortClassMarker = "30"

var (
	unitShort = decimal.NewFromInt(30)
	unitLong  = decimal.NewFromInt(60)
)

// Application records one payment mutation issued during allocation.
type Application struct {
	AppointmentID int64
	Certificate   string
}

// AllocationResult summarizes what an Allocate call did. Observational
// only; it is never persisted.
type AllocationResult struct {
	Applied []Application
}

// Allocate consumes the eligible certificate pool against a client's
// unpaid lessons, marking funded lessons paid through the Gateway.
//
// unpaid must be sorted oldest-first and certificates oldest-expiring
// first; Allocate preserves both orders and never reorders across classes.
// Allocation decisions are computed against this snapshot: the remote
// balance is not re-queried mid-run.
func Allocate(ctx context.Context, gw Gateway, unpaid []acuity.Appointment, certificates []acuity.Certificate, log *zap.Logger) (AllocationResult, error) {
	var lessons30, lessons60 []acuity.Appointment
	for _, lesson := range unpaid {
		if strings.Contains(lesson.Type, shortClassMarker) {
			lessons30 = append(lessons30, lesson)
		} else {
			lessons60 = append(lessons60, lesson)
		}
	}

	var certs30, certs60 []acuity.Certificate
	for _, cert := range certificates {
		if strings.Contains(cert.Name, shortClassMarker) {
			certs30 = append(certs30, cert)
		} else {
			certs60 = append(certs60, cert)
		}
	}

	var result AllocationResult
	applied, err := allocateClass(ctx, gw, lessons30, certs30, unitShort, log)
	result.Applied = append(result.Applied, applied...)
	if err != nil {
		return result, err
	}

	applied, err = allocateClass(ctx, gw, lessons60, certs60, unitLong, log)
	result.Applied = append(result.Applied, applied...)
	if err != nil {
		return result, err
	}
	return result, nil
}

func allocateClass(ctx context.Context, gw Gateway, lessons []acuity.Appointment, certificates []acuity.Certificate, unitCost decimal.Decimal, log *zap.Logger) ([]Application, error) {
	var applied []Application
	cursor := 0

	for _, cert := range certificates {
		remaining := cert.Remaining()
		for remaining.IsPositive() && cursor < len(lessons) {
			lesson := lessons[cursor]

			// Re-run tolerance: a lesson already paid in a stale snapshot
			// is skipped without consuming certificate balance.
			if lesson.IsPaid() {
				cursor++
				continue
			}

			err := gw.ApplyCertificate(ctx, lesson.ID, cert.Code)
			if errors.Is(err, acuity.ErrAlreadyPaid) {
				log.Info("lesson already paid, skipping",
					zap.Int64("appointment_id", lesson.ID))
				cursor++
				continue
			}
			if err != nil {
				return applied, errors.Wrapf(err, "allocate certificate %s", cert.Code)
			}

			applied = append(applied, Application{AppointmentID: lesson.ID, Certificate: cert.Code})
			remaining = remaining.Sub(unitCost)
			cursor++
		}
	}
	return applied, nil
}
