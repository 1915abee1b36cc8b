package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/identity/config"
	"github.com/Payphone-Digital/identity/pkg/circuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func newTestSMTPMailer(t *testing.T, breaker *circuit.Breaker) *SMTPMailer {
	t.Helper()
	m, err := NewSMTPMailer(config.MailConfig{Host: "localhost", Port: 2525, From: "no-reply@example.com"}, breaker)
	require.NoError(t, err)
	return m
}

func TestSMTPMailerRendersTemplate(t *testing.T) {
	m := newTestSMTPMailer(t, circuit.NewBreaker("smtp", circuit.DefaultConfig(), nil))

	expires := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	body, err := m.render(VerificationMail{
		To:        "al@example.com",
		Name:      "  ",
		Link:      "https://app.example.com/verify-email?token=abc",
		ExpiresAt: expires,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body, "Hi there,"))
	assert.Contains(t, body, "https://app.example.com/verify-email?token=abc")
	assert.Contains(t, body, "Mar 4, 2025 at 10:30 UTC")
}

func TestSMTPMailerSetsEnvelopeHeaders(t *testing.T) {
	m := newTestSMTPMailer(t, circuit.NewBreaker("smtp", circuit.DefaultConfig(), nil))

	var sent []*mail.Msg
	m.send = func(_ context.Context, msgs ...*mail.Msg) error {
		sent = append(sent, msgs...)
		return nil
	}

	err := m.SendVerification(context.Background(), VerificationMail{
		To:        "al@example.com",
		Name:      "Al",
		Link:      "https://app.example.com/verify-email?token=abc",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	rcpts, err := sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"al@example.com"}, rcpts)

	var buf bytes.Buffer
	_, err = sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Date: ")
	assert.Contains(t, raw, "Message-ID: <")
	assert.Contains(t, raw, "Subject: "+verificationSubject)
	assert.Contains(t, raw, "no-reply@example.com")
}

func TestSMTPMailerRejectsBadRecipient(t *testing.T) {
	m := newTestSMTPMailer(t, circuit.NewBreaker("smtp", circuit.DefaultConfig(), nil))
	m.send = func(context.Context, ...*mail.Msg) error {
		t.Fatal("message with invalid recipient must not be sent")
		return nil
	}

	err := m.SendVerification(context.Background(), VerificationMail{To: "not an address", Link: "l", ExpiresAt: time.Now()})
	assert.Error(t, err)
}

func TestSMTPMailerTripsBreaker(t *testing.T) {
	breaker := circuit.NewBreaker("smtp", circuit.Config{Threshold: 2, Timeout: time.Hour, SuccessThreshold: 1, MaxHalfOpen: 1}, nil)
	m := newTestSMTPMailer(t, breaker)

	calls := 0
	m.send = func(context.Context, ...*mail.Msg) error {
		calls++
		return errors.New("connection refused")
	}

	v := VerificationMail{To: "al@example.com", Link: "l", ExpiresAt: time.Now()}
	for i := 0; i < 3; i++ {
		_ = m.SendVerification(context.Background(), v)
	}
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, m.SendVerification(context.Background(), v), circuit.ErrCircuitOpen)
}

type recordingMailer struct {
	mu    sync.Mutex
	sent  []VerificationMail
	err   error
	ctxOK bool
}

func (r *recordingMailer) SendVerification(ctx context.Context, mail VerificationMail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxOK = ctx.Err() == nil
	r.sent = append(r.sent, mail)
	return r.err
}

func (r *recordingMailer) last() (VerificationMail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return VerificationMail{}, false
	}
	return r.sent[len(r.sent)-1], true
}

func TestDispatcherDetachesFromRequest(t *testing.T) {
	rec := &recordingMailer{}
	d := NewMailDispatcher(rec, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchVerification(ctx, VerificationMail{To: "al@example.com"})
	cancel()

	require.NoError(t, d.Wait(context.Background()))
	mail, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, "al@example.com", mail.To)
	assert.True(t, rec.ctxOK)
}

func TestDispatcherSwallowsErrors(t *testing.T) {
	rec := &recordingMailer{err: errors.New("relay down")}
	d := NewSyncMailDispatcher(rec)

	assert.NotPanics(t, func() {
		d.DispatchVerification(context.Background(), VerificationMail{To: "al@example.com"})
	})
	_, ok := rec.last()
	assert.True(t, ok)
}
