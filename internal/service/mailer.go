package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/Payphone-Digital/identity/config"
	"github.com/Payphone-Digital/identity/pkg/circuit"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/wneessen/go-mail"
)

const verificationSubject = "Verify your email address"

const verificationTemplate = `Hi {{ .Name | trim | default "there" }},

Please confirm your email address by opening the link below:

{{ .Link }}

The link expires on {{ dateInZone "Jan 2, 2006 at 15:04 MST" .ExpiresAt "UTC" }}.
If you did not create an account, you can ignore this message.
`

// VerificationMail is the data rendered into the verification email.
type VerificationMail struct {
	To        string
	Name      string
	Link      string
	ExpiresAt time.Time
}

type Mailer interface {
	SendVerification(ctx context.Context, mail VerificationMail) error
}

type sendFunc func(ctx context.Context, msgs ...*mail.Msg) error

// SMTPMailer renders the body with text/template plus sprig and hands the
// message to go-mail behind a circuit breaker.
type SMTPMailer struct {
	cfg     config.MailConfig
	tmpl    *template.Template
	breaker *circuit.Breaker
	send    sendFunc
}

func NewSMTPMailer(cfg config.MailConfig, breaker *circuit.Breaker) (*SMTPMailer, error) {
	tmpl, err := template.New("verification").Funcs(sprig.TxtFuncMap()).Parse(verificationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification template: %w", err)
	}

	policy := mail.TLSOpportunistic
	if cfg.RequireTLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{mail.WithTLSPolicy(policy)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPMailer{cfg: cfg, tmpl: tmpl, breaker: breaker, send: client.DialAndSendWithContext}, nil
}

func (m *SMTPMailer) SendVerification(ctx context.Context, v VerificationMail) error {
	msg, err := m.message(v)
	if err != nil {
		return err
	}
	return m.breaker.Do(ctx, func(ctx context.Context) error {
		return m.send(ctx, msg)
	})
}

func (m *SMTPMailer) message(v VerificationMail) (*mail.Msg, error) {
	body, err := m.render(v)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(v.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *SMTPMailer) render(v VerificationMail) (string, error) {
	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render verification email: %w", err)
	}
	return buf.String(), nil
}

// LogMailer only logs. Used when SMTP is disabled.
type LogMailer struct{}

func (LogMailer) SendVerification(ctx context.Context, mail VerificationMail) error {
	logger.InfoWithContext(ctx, "Mail disabled, verification email not sent").
		String("to", mail.To).
		Log()
	return nil
}

// MailDispatcher sends mail off the request path. Failures are logged and
// never reach the caller.
type MailDispatcher struct {
	mailer  Mailer
	timeout time.Duration
	wg      sync.WaitGroup
	async   bool
}

func NewMailDispatcher(mailer Mailer, timeout time.Duration) *MailDispatcher {
	return &MailDispatcher{mailer: mailer, timeout: timeout, async: true}
}

// NewSyncMailDispatcher delivers inline. Tests use it to observe sends.
func NewSyncMailDispatcher(mailer Mailer) *MailDispatcher {
	return &MailDispatcher{mailer: mailer, timeout: 10 * time.Second}
}

func (d *MailDispatcher) DispatchVerification(ctx context.Context, mail VerificationMail) {
	ctx = ctxutil.WithFunction(ctxutil.Detach(ctx), "mailer", "SendVerification")

	send := func() {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.mailer.SendVerification(sendCtx, mail); err != nil {
			logger.ErrorWithContext(ctx, "Failed to send verification email").
				Duration(time.Since(start)).
				Err(err).
				Log()
			return
		}
		logger.DebugWithContext(ctx, "Verification email sent").Duration(time.Since(start)).Log()
	}

	if !d.async {
		send()
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		send()
	}()
}

// Wait blocks until in-flight sends finish or ctx ends.
func (d *MailDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
