package reconcile_test

import (
	"context"
	"sync"
	"time"

	"github.com/warp/lesson-reconciler/acuity"
)

// =============================================================================
// FAKE GATEWAY - In-memory stand-in for the scheduling API
// =============================================================================

// appliedCall records one ApplyCertificate invocation.
type appliedCall struct {
	AppointmentID int64
	Certificate   string
}

// fakeGateway emulates the remote system's contract: ApplyCertificate
// flips the stored appointment to paid, so a re-fetch observes the
// mutation the way the real API would.
type fakeGateway struct {
	mu           sync.Mutex
	appointments []acuity.Appointment
	certificates map[string][]acuity.Certificate
	orders       map[int64]acuity.Order

	applied []appliedCall

	listAppointmentsErr error
	listCertificatesErr error
	applyErr            error
	orderCalls          int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		certificates: map[string][]acuity.Certificate{},
		orders:       map[int64]acuity.Order{},
	}
}

func (f *fakeGateway) ListAppointments(_ context.Context, minDate, maxDate time.Time, _ int64, clientEmail string) ([]acuity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listAppointmentsErr != nil {
		return nil, f.listAppointmentsErr
	}

	lo := dayStart(minDate)
	hi := dayStart(maxDate).AddDate(0, 0, 1)

	var out []acuity.Appointment
	for _, a := range f.appointments {
		if clientEmail != "" && a.Email != clientEmail {
			continue
		}
		at, err := a.StartTime()
		if err != nil {
			return nil, err
		}
		if at.Before(lo) || !at.Before(hi) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeGateway) ListCertificates(_ context.Context, clientEmail string) ([]acuity.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listCertificatesErr != nil {
		return nil, f.listCertificatesErr
	}
	return f.certificates[clientEmail], nil
}

func (f *fakeGateway) GetOrder(_ context.Context, orderID int64) (acuity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	order, ok := f.orders[orderID]
	if !ok {
		return acuity.Order{}, acuity.ErrNotFound
	}
	return order, nil
}

func (f *fakeGateway) ApplyCertificate(_ context.Context, appointmentID int64, certificateCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	for i := range f.appointments {
		if f.appointments[i].ID != appointmentID {
			continue
		}
		if f.appointments[i].IsPaid() {
			return acuity.ErrAlreadyPaid
		}
		f.appointments[i].Paid = "yes"
		f.appointments[i].Certificate = certificateCode
		f.applied = append(f.applied, appliedCall{AppointmentID: appointmentID, Certificate: certificateCode})
		return nil
	}
	return acuity.ErrNotFound
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// FIXTURE HELPERS
// =============================================================================

func lesson(id int64, email, lessonType, datetime string) acuity.Appointment {
	return acuity.Appointment{
		ID:        id,
		FirstName: "Robin",
		LastName:  "Teststudent",
		Email:     email,
		Paid:      "no",
		Type:      lessonType,
		Category:  "Guitar Grade 3",
		Datetime:  datetime,
	}
}

func cert(code, name, email, remaining, expiration string, orderID int64) acuity.Certificate {
	return acuity.Certificate{
		Code:             code,
		Name:             name,
		Email:            email,
		RemainingMinutes: remaining,
		Expiration:       expiration,
		OrderID:          orderID,
	}
}
