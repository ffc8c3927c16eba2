package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedSend struct {
	mu   sync.Mutex
	addr string
	from string
	to   []string
	raw  []byte
	auth sasl.Client
}

func (c *capturedSend) fn(err error) sendFunc {
	return func(addr string, auth sasl.Client, from string, to []string, r io.Reader) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.addr, c.from, c.to, c.auth = addr, from, to, auth
		c.raw, _ = io.ReadAll(r)
		return err
	}
}

func testConfig() Config {
	return Config{
		Host:     "smtp.example.test",
		Port:     587,
		Username: "apikey",
		Password: "secret",
		From:     "noreply@example.com",
		To:       []string{"ops@example.com", "oncall@example.com"},
	}
}

func newTestMailer(cfg Config, send sendFunc) *Mailer {
	m := New(cfg, zap.NewNop())
	m.send = send
	m.now = func() time.Time { return time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC) }
	return m
}

func TestMailerComposesHTMLMessage(t *testing.T) {
	t.Parallel()

	capture := &capturedSend{}
	m := newTestMailer(testConfig(), capture.fn(nil))

	body := `<h2>Digest</h2><table><tr><td>Ünïcode row</td></tr></table>`
	require.NoError(t, m.Send(context.Background(), "Daily Digest - 1 jobs found", body))

	assert.Equal(t, "smtp.example.test:587", capture.addr)
	assert.Equal(t, "noreply@example.com", capture.from)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, capture.to)

	mech, ir, err := capture.auth.Start()
	require.NoError(t, err)
	assert.Equal(t, sasl.Plain, mech)
	assert.Equal(t, "\x00apikey\x00secret", string(ir))

	entity, err := message.Read(bytes.NewReader(capture.raw))
	require.NoError(t, err)
	assert.Equal(t, "Daily Digest - 1 jobs found", entity.Header.Get("Subject"))
	assert.Contains(t, entity.Header.Get("To"), "ops@example.com")
	assert.NotEmpty(t, entity.Header.Get("Message-Id"))
	mediaType, params, err := entity.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/html", mediaType)
	assert.Equal(t, "utf-8", strings.ToLower(params["charset"]))

	decoded, err := io.ReadAll(entity.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestMailerSkipsWithoutCredential(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Password = ""
	called := false
	m := newTestMailer(cfg, func(string, sasl.Client, string, []string, io.Reader) error {
		called = true
		return nil
	})

	assert.False(t, m.Configured())
	err := m.Send(context.Background(), "s", "b")
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.False(t, called)
}

func TestMailerWrapsSendFailure(t *testing.T) {
	t.Parallel()

	capture := &capturedSend{}
	authErr := errors.New("535 Authentication failed")
	m := newTestMailer(testConfig(), capture.fn(authErr))

	err := m.Send(context.Background(), "s", "<p>b</p>")

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "send", de.Stage)
	require.ErrorIs(t, err, authErr)
}

func TestMailerRejectsBadAddresses(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.To = []string{"not an address"}
	m := newTestMailer(cfg, (&capturedSend{}).fn(nil))

	var de *DeliveryError
	require.ErrorAs(t, m.Send(context.Background(), "s", "b"), &de)
	assert.Equal(t, "compose", de.Stage)

	cfg.To = nil
	m = newTestMailer(cfg, (&capturedSend{}).fn(nil))
	require.ErrorAs(t, m.Send(context.Background(), "s", "b"), &de)
}

func TestMailerHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	m := newTestMailer(testConfig(), func(string, sasl.Client, string, []string, io.Reader) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Send(ctx, "s", "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
