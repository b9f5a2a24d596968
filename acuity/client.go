/*
Package acuity wraps the scheduling provider's REST API.

PURPOSE:
  Typed, synchronous client for the four calls the reconciler needs:
  appointments by date range, certificates by client, an order lookup, and
  the admin mutation that applies a certificate to an appointment.

DESIGN:
  - HTTP basic auth with a fixed user-ID/API-key pair
  - Every request passes through an outbound rate limiter; the provider
    throttles aggressively on burst traffic
  - Bounded retry with linear backoff for network errors and 5xx; 4xx is
    surfaced immediately as a StatusError

USAGE:
  client := acuity.NewClient(acuity.Config{
      BaseURL: "https://acuityscheduling.com/api/v1/",
      UserID:  cfg.AcuityUserID,
      APIKey:  cfg.AcuityAPIKey,
  }, logger)
  appts, err := client.ListAppointments(ctx, from, to, calendarID, "")

SEE ALSO:
  - types.go: wire types
  - errors.go: error classification
  - reconcile: the consumer of this client
*/
package acuity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// queryDateFormat is the long-form date the API expects in minDate/maxDate,
// e.g. "January 5, 2026".
const queryDateFormat = "January 2, 2006"

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
	defaultRateLimit   = rate.Limit(5) // requests per second
)

// Config carries client construction parameters.
type Config struct {
	BaseURL string
	UserID  string
	APIKey  string

	// MaxAttempts bounds the retry loop for retryable failures.
	// Zero means the default of 3.
	MaxAttempts int

	// Backoff is the base delay between attempts, multiplied by the
	// attempt number. Zero means the default of 2s.
	Backoff time.Duration

	HTTPClient *http.Client
}

// Client is a synchronous scheduling API client. Safe for concurrent use.
type Client struct {
	baseURL     string
	userID      string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

// NewClient builds a Client. The logger must not be nil.
func NewClient(cfg Config, log *zap.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		userID:      cfg.UserID,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(defaultRateLimit, 1),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
	}
}

// ListAppointments returns appointments in [minDate, maxDate] on the given
// calendar. When clientEmail is non-empty the results are restricted to
// that client.
func (c *Client) ListAppointments(ctx context.Context, minDate, maxDate time.Time, calendarID int64, clientEmail string) ([]Appointment, error) {
	query := url.Values{}
	query.Set("minDate", minDate.Format(queryDateFormat))
	query.Set("maxDate", maxDate.Format(queryDateFormat))
	query.Set("calendarID", strconv.FormatInt(calendarID, 10))
	if clientEmail != "" {
		query.Set("email", clientEmail)
	}

	var appointments []Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments", query, nil, &appointments); err != nil {
		return nil, errors.Wrap(err, "list appointments")
	}
	return appointments, nil
}

// ListCertificates returns all certificates registered to a client email,
// regardless of balance or expiration. Filtering is the caller's concern.
func (c *Client) ListCertificates(ctx context.Context, clientEmail string) ([]Certificate, error) {
	query := url.Values{}
	query.Set("email", clientEmail)

	var certificates []Certificate
	if err := c.do(ctx, http.MethodGet, "/certificates", query, nil, &certificates); err != nil {
		return nil, errors.Wrap(err, "list certificates")
	}
	return certificates, nil
}

// GetOrder fetches the purchase record a certificate originates from.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, nil, &order); err != nil {
		return Order{}, errors.Wrapf(err, "get order %d", orderID)
	}
	return order, nil
}

// GetAppointment fetches a single appointment by ID.
func (c *Client) GetAppointment(ctx context.Context, id int64) (Appointment, error) {
	var appointment Appointment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/appointments/%d", id), nil, nil, &appointment); err != nil {
		return Appointment{}, errors.Wrapf(err, "get appointment %d", id)
	}
	return appointment, nil
}

// ApplyCertificate marks an appointment paid with the given certificate
// code. The remote system owns the balance bookkeeping; this call does not
// report how many minutes were consumed.
func (c *Client) ApplyCertificate(ctx context.Context, appointmentID int64, certificateCode string) error {
	query := url.Values{}
	query.Set("admin", "true")

	body := map[string]string{"certificate": certificateCode}
	path := fmt.Sprintf("/appointments/%d", appointmentID)
	if err := c.do(ctx, http.MethodPut, path, query, body, nil); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(statusErr.Body), "paid") {
			return errors.Wrapf(ErrAlreadyPaid, "appointment %d", appointmentID)
		}
		return errors.Wrapf(err, "apply certificate to appointment %d", appointmentID)
	}
	c.log.Info("certificate applied",
		zap.Int64("appointment_id", appointmentID),
		zap.String("certificate", certificateCode))
	return nil
}

// do executes one API call with rate limiting and bounded retry.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, method, path, query, body, out)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		c.log.Warn("retryable API failure",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < c.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.userID, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}
