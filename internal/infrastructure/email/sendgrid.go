package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

const (
	GlobalHost   = "https://api.sendgrid.com"
	EUHost       = "https://api.eu.sendgrid.com"
	sendEndpoint = "/v3/mail/send"

	regionalMismatch = "regional attribute"
)

// Options configure the SendGrid adapter.
type Options struct {
	APIKey      string
	FromEmail   string
	FromName    string
	EUResidency bool
	MaxRetries  int
	// RetryInterval is the first backoff step for transient failures.
	RetryInterval time.Duration
	// GlobalHost and EUHost override the API base URLs.
	GlobalHost string
	EUHost     string
}

// SendGridMailer delivers the digest through the SendGrid v3 mail send API,
// one request per recipient.
type SendGridMailer struct {
	opts Options
	eu   bool
	log  *slog.Logger
}

var _ ports.Mailer = (*SendGridMailer)(nil)

func NewSendGridMailer(opts Options, logger *slog.Logger) *SendGridMailer {
	if opts.GlobalHost == "" {
		opts.GlobalHost = GlobalHost
	}
	if opts.EUHost == "" {
		opts.EUHost = EUHost
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridMailer{opts: opts, eu: opts.EUResidency, log: logger}
}

// Deliver sends payload to every recipient. Authentication and authorization
// failures abort the remaining recipients and are returned as the error; any
// other per-recipient failure is only recorded in the report.
func (m *SendGridMailer) Deliver(ctx context.Context, payload domain.DeliveryPayload) (domain.DeliveryReport, error) {
	var report domain.DeliveryReport
	if m.opts.APIKey == "" {
		err := &domain.DeliveryError{Kind: domain.DeliveryAuthentication, Err: errors.New("sendgrid api key is empty")}
		return report, err
	}
	if m.opts.FromEmail == "" {
		err := &domain.DeliveryError{Kind: domain.DeliveryAuthorization, Err: errors.New("sender address is empty")}
		return report, err
	}

	switched := false
	for i, rcpt := range payload.Recipients {
		err := m.sendOne(ctx, payload, rcpt, &switched)
		report.Results = append(report.Results, domain.RecipientResult{Recipient: rcpt, Err: err})
		if err == nil {
			m.log.Info("email sent", "recipient", rcpt.Email)
			continue
		}

		if errors.Is(err, domain.ErrDeliveryAuth) {
			for _, left := range payload.Recipients[i+1:] {
				report.Results = append(report.Results, domain.RecipientResult{Recipient: left, Err: err})
			}
			return report, err
		}
		if ctx.Err() != nil {
			for _, left := range payload.Recipients[i+1:] {
				report.Results = append(report.Results, domain.RecipientResult{Recipient: left, Err: ctx.Err()})
			}
			return report, fmt.Errorf("deliver: %w", ctx.Err())
		}
	}
	return report, nil
}

func (m *SendGridMailer) sendOne(ctx context.Context, payload domain.DeliveryPayload, rcpt domain.Recipient, switched *bool) error {
	body := mail.GetRequestBody(m.message(payload, rcpt))

	err := m.sendWithRetry(ctx, body, rcpt)
	var derr *domain.DeliveryError
	if errors.As(err, &derr) && derr.Kind == domain.DeliveryAuthentication && regional(derr) && !*switched {
		*switched = true
		m.eu = !m.eu
		m.log.Warn("sendgrid region mismatch, switching region", "eu", m.eu)
		err = m.sendWithRetry(ctx, body, rcpt)
	}
	return err
}

func (m *SendGridMailer) sendWithRetry(ctx context.Context, body []byte, rcpt domain.Recipient) error {
	host := m.opts.GlobalHost
	if m.eu {
		host = m.opts.EUHost
	}
	req := sendgrid.GetRequest(m.opts.APIKey, sendEndpoint, host)
	req.Method = rest.Post
	req.Body = body

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.opts.RetryInterval
	exp.MaxInterval = 30 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(m.opts.MaxRetries)), ctx)

	op := func() error {
		resp, err := sendgrid.MakeRequestWithContext(ctx, req)
		if err != nil {
			return &domain.DeliveryError{Kind: domain.DeliveryTransient, Recipient: rcpt.Email, Err: err}
		}
		err = classify(resp, rcpt.Email)
		if err != nil && !errors.Is(err, domain.ErrDeliveryTransient) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		m.log.Warn("sendgrid request failed, retrying", "recipient", rcpt.Email, "error", err, "wait", wait)
	}

	return backoff.RetryNotify(op, policy, notify)
}

func (m *SendGridMailer) message(payload domain.DeliveryPayload, rcpt domain.Recipient) *mail.SGMailV3 {
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.opts.FromName, m.opts.FromEmail))
	msg.Subject = payload.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(rcpt.Name, rcpt.Email))
	msg.AddPersonalizations(p)

	if payload.TextBody != "" {
		msg.AddContent(mail.NewContent("text/plain", payload.TextBody))
	}
	msg.AddContent(mail.NewContent("text/html", payload.Body))
	return msg
}

func classify(resp *rest.Response, recipient string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	derr := &domain.DeliveryError{
		Recipient:  recipient,
		StatusCode: resp.StatusCode,
		Err:        errors.New(truncate(strings.TrimSpace(resp.Body), 512)),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		derr.Kind = domain.DeliveryAuthentication
	case resp.StatusCode == http.StatusForbidden:
		derr.Kind = domain.DeliveryAuthorization
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		derr.Kind = domain.DeliveryTransient
	default:
		derr.Kind = domain.DeliveryRejected
	}
	return derr
}

// regional reports the 401 SendGrid returns when the key belongs to the other region.
func regional(derr *domain.DeliveryError) bool {
	return derr.Err != nil && strings.Contains(strings.ToLower(derr.Err.Error()), regionalMismatch)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}
