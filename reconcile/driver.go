/*
driver.go - Daily reconciliation driver

PURPOSE:
  Orchestrates one full reconciliation run: for every staff member, for
  every client appointment on today's calendar, resolve certificates,
  allocate them against the unpaid-lesson queue, recompute residual debt,
  and report the clients who still owe payment.

FAILURE ISOLATION:
  One misbehaving client must not abort the run. Any error while
  processing a client (bad data, 4xx from the API, exhausted retries) is
  logged, counted, and skipped; remaining clients and staff members are
  still processed. Only context cancellation stops the run early.
*/
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/acuity"
	"github.com/warp/lesson-reconciler/notify"
	"github.com/warp/lesson-reconciler/roster"
)

// Driver runs the daily reconciliation across all staff members.
type Driver struct {
	Gateway  Gateway
	Notifier notify.Notifier
	Staff    []roster.StaffMember
	Exempt   roster.ExemptSet
	Log      *zap.Logger

	// Now is the clock; nil means time.Now. Injected by tests.
	Now func() time.Time
}

// RunResult aggregates what one reconciliation run did.
type RunResult struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time

	StaffProcessed   int
	ClientsProcessed int
	ClientsFailed    int
	ClientsNotified  int
	LessonsPaid      int
	ReportsSent      int
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run executes one reconciliation run. It returns early only when the
// context is cancelled; all other failures are isolated per client or per
// staff member and reflected in the counters.
func (d *Driver) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{
		ID:        uuid.NewString(),
		StartedAt: d.now(),
	}
	today := dateOnly(d.now())

	d.Log.Info("reconciliation run started",
		zap.String("run_id", result.ID),
		zap.Int("staff", len(d.Staff)))

	for _, staff := range d.Staff {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		report, err := d.runStaff(ctx, staff, today, &result)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			d.Log.Error("staff member skipped",
				zap.String("run_id", result.ID),
				zap.String("staff", staff.Name),
				zap.Error(err))
			continue
		}
		result.StaffProcessed++

		if report.Empty() {
			continue
		}
		if err := d.Notifier.Send(ctx, staff, report); err != nil {
			d.Log.Error("report delivery failed",
				zap.String("run_id", result.ID),
				zap.String("staff", staff.Name),
				zap.Error(err))
			continue
		}
		result.ReportsSent++
		result.ClientsNotified += len(report.Debtors)
	}

	result.CompletedAt = d.now()
	d.Log.Info("reconciliation run completed",
		zap.String("run_id", result.ID),
		zap.Int("clients_processed", result.ClientsProcessed),
		zap.Int("clients_failed", result.ClientsFailed),
		zap.Int("lessons_paid", result.LessonsPaid),
		zap.Int("reports_sent", result.ReportsSent))
	return result, nil
}

// runStaff processes every client appointment on one staff member's
// calendar for today and returns the accumulated debt report.
func (d *Driver) runStaff(ctx context.Context, staff roster.StaffMember, today time.Time, result *RunResult) (notify.Report, error) {
	appointments, err := d.Gateway.ListAppointments(ctx, today, today, staff.CalendarID, "")
	if err != nil {
		return notify.Report{}, err
	}

	acc := NewAccumulator()
	for _, appointment := range appointments {
		if err := ctx.Err(); err != nil {
			return notify.Report{}, err
		}

		paid, err := d.processClient(ctx, staff, appointment, today, acc)
		result.LessonsPaid += paid
		if err != nil {
			result.ClientsFailed++
			d.Log.Warn("client skipped",
				zap.String("staff", staff.Name),
				zap.String("client", appointment.Email),
				zap.Bool("client_error", acuity.IsClientError(err)),
				zap.Error(err))
			continue
		}
		result.ClientsProcessed++
	}
	return acc.Report(), nil
}

// processClient runs the filter -> allocate -> recompute cycle for one
// client appointment. Returns the number of lessons paid.
func (d *Driver) processClient(ctx context.Context, staff roster.StaffMember, appointment acuity.Appointment, today time.Time, acc *Accumulator) (int, error) {
	pool, err := d.Gateway.ListCertificates(ctx, appointment.Email)
	if err != nil {
		return 0, err
	}

	eligible, err := EligibleCertificates(ctx, d.Gateway, appointment, pool, today)
	if err != nil {
		return 0, err
	}

	queue, err := BuildUnpaidLedger(ctx, d.Gateway, staff, appointment.Email, d.Exempt, today)
	if err != nil {
		return 0, err
	}

	allocation, err := Allocate(ctx, d.Gateway, queue.Entries, eligible, d.Log)
	if err != nil {
		return len(allocation.Applied), err
	}

	// Allocation mutated remote payment state; the residual debt must be
	// re-observed, not derived from the pre-allocation queue.
	residual, err := BuildUnpaidLedger(ctx, d.Gateway, staff, appointment.Email, d.Exempt, today)
	if err != nil {
		return len(allocation.Applied), err
	}

	if !residual.Empty() {
		acc.Add(appointment, residual.Dates)
	}
	return len(allocation.Applied), nil
}
