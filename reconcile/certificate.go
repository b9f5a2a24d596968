package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/warp/lesson-reconciler/acuity"
)

// universalCertificate marks a certificate type that applies to any lesson
// category, regardless of subject.
const universalCertificate = "1 Hour"

// EligibleCertificates filters a client's raw certificate pool down to the
// certificates that can fund the given appointment's lessons, ordered
// oldest-expiring first so balance closest to waste is consumed first.
//
// A certificate survives when all of the following hold:
//   - it has a positive remaining balance
//   - its name matches the appointment's category (first word of the
//     category appears in the certificate name), or it is a universal
//     "1 Hour" certificate
//   - it has not expired: expiration is compared at day granularity and a
//     certificate expiring today is still valid
//
// Certificates missing an owner email have it backfilled from their
// originating order. The order lookups are the only side effect.
func EligibleCertificates(ctx context.Context, gw Gateway, appointment acuity.Appointment, pool []acuity.Certificate, today time.Time) ([]acuity.Certificate, error) {
	today = dateOnly(today)
	categoryWord := firstWord(appointment.Category)

	type candidate struct {
		cert    acuity.Certificate
		expires time.Time
	}

	var candidates []candidate
	for _, cert := range pool {
		if !cert.Remaining().IsPositive() {
			continue
		}
		if !categoryMatches(categoryWord, cert.Name) {
			continue
		}
		expires, err := cert.ExpiresOn()
		if err != nil {
			return nil, errors.Wrapf(err, "certificate %s: bad expiration %q", cert.Code, cert.Expiration)
		}
		if dateOnly(expires).Before(today) {
			continue
		}
		candidates = append(candidates, candidate{cert: cert, expires: expires})
	}

	// Stable: certificates expiring the same day keep their API order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].expires.Before(candidates[j].expires)
	})

	eligible := make([]acuity.Certificate, 0, len(candidates))
	for _, c := range candidates {
		cert := c.cert
		if cert.Email == "" {
			order, err := gw.GetOrder(ctx, cert.OrderID)
			if err != nil {
				return nil, errors.Wrapf(err, "backfill email for certificate %s", cert.Code)
			}
			cert.Email = order.Email
		}
		eligible = append(eligible, cert)
	}
	return eligible, nil
}

func categoryMatches(categoryWord, certificateName string) bool {
	if categoryWord != "" && strings.Contains(certificateName, categoryWord) {
		return true
	}
	return strings.Contains(certificateName, universalCertificate)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
