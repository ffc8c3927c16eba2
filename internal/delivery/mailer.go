// Package delivery sends the rendered digest over SMTP.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/logging"
)

// ErrMissingCredential is returned when no delivery credential is configured.
var ErrMissingCredential = errors.New("delivery credential is not configured")

// FailureHint lists the usual reasons a digest could not be delivered.
const FailureHint = `digest delivery failed; the scrape results were not lost. Possible causes:
  - the SMTP credential is missing, expired or revoked
  - the network blocks outbound SMTP or the relay is unreachable
  - the mail provider is having an outage
  - the sender address is not verified, or host, port or recipients are misconfigured`

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Sender is the delivery contract the run depends on.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, subject, htmlBody string) error
}

// DeliveryError wraps any failure to hand the digest to the mail relay.
type DeliveryError struct {
	Stage string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver digest (%s): %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type sendFunc func(addr string, auth sasl.Client, from string, to []string, r io.Reader) error

// Mailer composes MIME messages and submits them with SMTP AUTH PLAIN.
type Mailer struct {
	cfg    Config
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

// New builds a Mailer.
func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logging.Component(logger, "delivery"),
	}
}

var _ Sender = (*Mailer)(nil)

// Configured reports whether a credential is present.
func (m *Mailer) Configured() bool {
	return m.cfg.Password != ""
}

// Send delivers the digest as a single text/html part.
func (m *Mailer) Send(ctx context.Context, subject, htmlBody string) error {
	if !m.Configured() {
		return ErrMissingCredential
	}
	if len(m.cfg.To) == 0 {
		return &DeliveryError{Stage: "compose", Err: errors.New("no recipients configured")}
	}

	msg, err := m.compose(subject, htmlBody)
	if err != nil {
		return &DeliveryError{Stage: "compose", Err: err}
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, m.cfg.To, bytes.NewReader(msg))
	}()
	select {
	case <-ctx.Done():
		return &DeliveryError{Stage: "send", Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &DeliveryError{Stage: "send", Err: err}
		}
	}

	m.logger.Info("digest delivered",
		zap.String("relay", addr),
		zap.Strings("to", m.cfg.To),
		zap.String("subject", subject),
	)
	return nil
}

func (m *Mailer) compose(subject, htmlBody string) ([]byte, error) {
	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	to := make([]*mail.Address, 0, len(m.cfg.To))
	for _, raw := range m.cfg.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", raw, err)
		}
		to = append(to, addr)
	}

	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, htmlBody); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}
