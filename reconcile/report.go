package reconcile

import (
	"github.com/warp/lesson-reconciler/acuity"
	"github.com/warp/lesson-reconciler/notify"
)

// Accumulator collects the clients with residual debt for one staff
// member's iteration. It is owned by the driver, created fresh per staff
// member, and discarded after the report is sent.
//
// Clients are deduplicated by email. The same client appearing on several
// of today's appointments is reported once.
type Accumulator struct {
	seen    map[string]struct{}
	debtors []notify.Debtor
}

func NewAccumulator() *Accumulator {
	return &Accumulator{seen: map[string]struct{}{}}
}

// Add records a client with unpaid lessons. Returns false when the client
// was already recorded.
func (a *Accumulator) Add(appointment acuity.Appointment, unpaidDates []string) bool {
	if _, dup := a.seen[appointment.Email]; dup {
		return false
	}
	a.seen[appointment.Email] = struct{}{}
	a.debtors = append(a.debtors, notify.Debtor{
		FirstName:   appointment.FirstName,
		Surname:     appointment.LastName,
		Email:       appointment.Email,
		UnpaidDates: unpaidDates,
	})
	return true
}

func (a *Accumulator) Empty() bool { return len(a.debtors) == 0 }

func (a *Accumulator) Len() int { return len(a.debtors) }

// Report snapshots the accumulated debtors for delivery.
func (a *Accumulator) Report() notify.Report {
	return notify.Report{Debtors: append([]notify.Debtor(nil), a.debtors...)}
}
