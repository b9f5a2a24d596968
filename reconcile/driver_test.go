package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/acuity"
	"github.com/warp/lesson-reconciler/notify"
	"github.com/warp/lesson-reconciler/reconcile"
	"github.com/warp/lesson-reconciler/roster"
)

// recordingNotifier captures reports instead of delivering them.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []notify.Report
	sendErr error
}

func (n *recordingNotifier) Send(_ context.Context, _ roster.StaffMember, report notify.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, report)
	return nil
}

func newDriver(gw *fakeGateway, n notify.Notifier, exempt roster.ExemptSet) *reconcile.Driver {
	return &reconcile.Driver{
		Gateway:  gw,
		Notifier: n,
		Staff:    []roster.StaffMember{testStaff},
		Exempt:   exempt,
		Log:      zap.NewNop(),
		Now:      func() time.Time { return today },
	}
}

func TestDriver_FullCoverage_ClientNotReported(t *testing.T) {
	// GIVEN: A client with three unpaid 30-minute lessons (Jan 1, 5, 10)
	//        and one valid 30-minute certificate with 90 remaining minutes
	//        expiring Dec 31, plus a paid appointment today that puts the
	//        client on the day's calendar
	// WHEN: Running the daily reconciliation
	// THEN: All three lessons are paid, the residual ledger is empty, and
	//       no report is sent

	gw := newFakeGateway()
	todayAppt := lesson(99, "s@example.com", "30 Minute Guitar", "2026-01-15T10:00:00+0000")
	todayAppt.Paid = "yes"
	gw.appointments = []acuity.Appointment{
		todayAppt,
		lesson(1, "s@example.com", "30 Minute Guitar", "2026-01-01T10:00:00+0000"),
		lesson(2, "s@example.com", "30 Minute Guitar", "2026-01-05T10:00:00+0000"),
		lesson(3, "s@example.com", "30 Minute Guitar", "2026-01-10T10:00:00+0000"),
	}
	gw.certificates["s@example.com"] = []acuity.Certificate{
		cert("C-90", "Guitar 30 Minute Block", "s@example.com", "90", "2026-12-31", 0),
	}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.LessonsPaid)
	assert.Equal(t, 1, result.ClientsProcessed)
	assert.Equal(t, 0, result.ClientsFailed)
	assert.Empty(t, notifier.sent, "fully covered client must not be reported")
	for _, id := range []int64{1, 2, 3} {
		for _, a := range gw.appointments {
			if a.ID == id {
				assert.Equal(t, "yes", a.Paid, "lesson %d should be paid", id)
			}
		}
	}
}

func TestDriver_ResidualDebtReported(t *testing.T) {
	// GIVEN: A client with three unpaid lessons but only 30 certificate
	//        minutes
	// WHEN: Running
	// THEN: One lesson is paid and the client is reported with the two
	//       residual dates

	gw := newFakeGateway()
	gw.appointments = []acuity.Appointment{
		lesson(1, "s@example.com", "30 Minute Guitar", "2026-01-01T10:00:00+0000"),
		lesson(2, "s@example.com", "30 Minute Guitar", "2026-01-05T10:00:00+0000"),
		lesson(3, "s@example.com", "30 Minute Guitar", "2026-01-15T10:00:00+0000"), // today
	}
	gw.certificates["s@example.com"] = []acuity.Certificate{
		cert("C-30", "Guitar 30 Minute Block", "s@example.com", "30", "2026-12-31", 0),
	}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.LessonsPaid)
	require.Len(t, notifier.sent, 1)
	require.Len(t, notifier.sent[0].Debtors, 1)
	debtor := notifier.sent[0].Debtors[0]
	assert.Equal(t, "s@example.com", debtor.Email)
	assert.Equal(t, []string{"05 Jan 2026", "15 Jan 2026"}, debtor.UnpaidDates)
	assert.Equal(t, 1, result.ReportsSent)
	assert.Equal(t, 1, result.ClientsNotified)
}

func TestDriver_DedupByEmail(t *testing.T) {
	// GIVEN: The same client has two appointments on today's calendar and
	//        residual debt
	// WHEN: Running
	// THEN: The client appears exactly once in the report

	gw := newFakeGateway()
	gw.appointments = []acuity.Appointment{
		lesson(1, "s@example.com", "30 Minute Guitar", "2026-01-15T09:00:00+0000"),
		lesson(2, "s@example.com", "30 Minute Guitar", "2026-01-15T14:00:00+0000"),
	}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ClientsProcessed)
	require.Len(t, notifier.sent, 1)
	assert.Len(t, notifier.sent[0].Debtors, 1)
}

func TestDriver_ClientFailureIsolated(t *testing.T) {
	// GIVEN: Fetching certificates fails for every client on this calendar
	// WHEN: Running
	// THEN: The clients are counted as failed, nothing is paid, and the
	//       run still completes

	gw := newFakeGateway()
	gw.appointments = []acuity.Appointment{
		lesson(1, "a@example.com", "30 Minute Guitar", "2026-01-15T09:00:00+0000"),
		lesson(2, "b@example.com", "30 Minute Guitar", "2026-01-15T10:00:00+0000"),
	}
	gw.listCertificatesErr = &acuity.StatusError{Method: "GET", Path: "/certificates", StatusCode: 403}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ClientsFailed)
	assert.Equal(t, 0, result.ClientsProcessed)
	assert.Equal(t, 0, result.LessonsPaid)
	assert.Equal(t, 1, result.StaffProcessed)
}

func TestDriver_StaffFailureIsolated(t *testing.T) {
	// GIVEN: Two staff members; the calendar fetch fails outright
	// WHEN: Running
	// THEN: The run completes with no staff processed instead of aborting

	gw := newFakeGateway()
	gw.listAppointmentsErr = &acuity.StatusError{Method: "GET", Path: "/appointments", StatusCode: 500}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})
	driver.Staff = []roster.StaffMember{testStaff, {Name: "Bob", CalendarID: 7654321}}

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.StaffProcessed)
}

func TestDriver_ContextCancellationStopsRun(t *testing.T) {
	// GIVEN: A cancelled context
	// WHEN: Running
	// THEN: The run returns the context error immediately

	gw := newFakeGateway()
	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriver_ExemptClientNeverReported(t *testing.T) {
	// GIVEN: An exempt client with unpaid lessons today
	// WHEN: Running
	// THEN: Their ledger is empty, so they are not reported

	gw := newFakeGateway()
	gw.appointments = []acuity.Appointment{
		lesson(1, "exempt@example.com", "30 Minute Guitar", "2026-01-15T09:00:00+0000"),
	}

	notifier := &recordingNotifier{}
	driver := newDriver(gw, notifier, roster.ExemptSet{"exempt@example.com": {}})

	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ClientsProcessed)
	assert.Empty(t, notifier.sent)
}
