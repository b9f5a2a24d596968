/*
Package notify delivers the daily debt report to staff members.

The Notifier interface keeps the delivery channel pluggable; the shipped
implementations are a Discord bot post (production) and a console logger
(local runs and tests). Report formatting lives here so every channel
renders the same body.
*/
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/roster"
)

// Debtor is one client with residual unpaid lessons after certificate
// allocation.
type Debtor struct {
	FirstName   string
	Surname     string
	Email       string
	UnpaidDates []string // display-formatted, oldest first
}

// Report is the per-staff debt summary handed to a Notifier.
type Report struct {
	Debtors []Debtor
}

func (r Report) Empty() bool { return len(r.Debtors) == 0 }

// Body renders the multi-line report. Debtors are listed in reverse
// accumulation order so the most recently seen client appears first.
func (r Report) Body() string {
	var b strings.Builder
	b.WriteString("\n**Students who need to pay today**:\n")
	for i := len(r.Debtors) - 1; i >= 0; i-- {
		d := r.Debtors[i]
		fmt.Fprintf(&b, "\n**%s %s**\n**Email**: %s\n**Unpaid lessons**: %d\n**Dates**: %s\n",
			d.FirstName, d.Surname, d.Email, len(d.UnpaidDates), strings.Join(d.UnpaidDates, ", "))
	}
	b.WriteString("*")
	return b.String()
}

// Notifier delivers a report to one staff member.
type Notifier interface {
	Send(ctx context.Context, staff roster.StaffMember, report Report) error
}

// ConsoleNotifier logs the report instead of delivering it. Used when no
// Discord token is configured.
type ConsoleNotifier struct {
	Log *zap.Logger
}

func (n *ConsoleNotifier) Send(_ context.Context, staff roster.StaffMember, report Report) error {
	n.Log.Info("debt report",
		zap.String("staff", staff.Name),
		zap.Int("debtors", len(report.Debtors)),
		zap.String("body", report.Body()))
	return nil
}
