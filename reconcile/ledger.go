package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/warp/lesson-reconciler/acuity"
	"github.com/warp/lesson-reconciler/roster"
)

// LookbackDays is the trailing window the unpaid ledger covers.
const LookbackDays = 90

// displayDateFormat renders lesson dates for the staff report,
// e.g. "05 Jan 2026".
const displayDateFormat = "02 Jan 2006"

// Ledger is a client's unpaid lessons over the trailing window, sorted
// oldest first. Entries feed the allocation engine; Dates feed the report.
type Ledger struct {
	Entries []acuity.Appointment
	Dates   []string
}

func (l Ledger) Empty() bool { return len(l.Entries) == 0 }

// BuildUnpaidLedger fetches the client's appointments over the trailing
// window through today and reduces them to the residual unpaid set.
//
// This always re-fetches. After allocation mutates remote payment state,
// callers re-invoke it rather than patching the pre-allocation result; the
// remote system is the source of truth for what is paid.
func BuildUnpaidLedger(ctx context.Context, gw Gateway, staff roster.StaffMember, clientEmail string, exempt roster.ExemptSet, today time.Time) (Ledger, error) {
	from := today.AddDate(0, 0, -LookbackDays)

	appointments, err := gw.ListAppointments(ctx, from, today, staff.CalendarID, clientEmail)
	if err != nil {
		return Ledger{}, errors.Wrapf(err, "fetch appointments for %s", clientEmail)
	}

	type dated struct {
		appt acuity.Appointment
		at   time.Time
	}

	var unpaid []dated
	for _, appt := range appointments {
		if appt.IsPaid() {
			continue
		}
		if exempt.Contains(appt.Email) {
			continue
		}
		at, err := appt.StartTime()
		if err != nil {
			return Ledger{}, errors.Wrapf(err, "appointment %d: bad datetime %q", appt.ID, appt.Datetime)
		}
		unpaid = append(unpaid, dated{appt: appt, at: at})
	}

	sort.SliceStable(unpaid, func(i, j int) bool {
		return unpaid[i].at.Before(unpaid[j].at)
	})

	ledger := Ledger{
		Entries: make([]acuity.Appointment, 0, len(unpaid)),
		Dates:   make([]string, 0, len(unpaid)),
	}
	for _, d := range unpaid {
		ledger.Entries = append(ledger.Entries, d.appt)
		ledger.Dates = append(ledger.Dates, d.at.Format(displayDateFormat))
	}
	return ledger, nil
}
