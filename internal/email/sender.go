package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"otplink/internal/apperrors"
	"otplink/internal/models"
	"otplink/internal/timeutil"
)

// Message is a composed plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers one message using the given SMTP settings.
type Sender interface {
	Send(ctx context.Context, settings models.EmailSettings, msg Message) error
}

// Compose builds the OTP notification for rec.
func Compose(rec *models.OTPRecord, settings models.EmailSettings) Message {
	from := settings.Username
	if !strings.Contains(from, "@") {
		from = settings.Recipient
	}
	return Message{
		From:    from,
		To:      settings.Recipient,
		Subject: fmt.Sprintf("OTPLink - OTP: %s from %s", rec.OTP, rec.Sender),
		Body: fmt.Sprintf("OTP: %s\nFrom: %s\nMessage: %s\nTime: %s\n\nSent by OTPLink App",
			rec.OTP, rec.Sender, rec.Message, timeutil.FormatISO(rec.Timestamp)),
	}
}

// SMTPSender talks to the configured SMTP server directly. Port 465 uses
// implicit TLS; anything else upgrades with STARTTLS when offered.
type SMTPSender struct {
	timeout time.Duration
}

func NewSMTPSender(timeout time.Duration) *SMTPSender {
	return &SMTPSender{timeout: timeout}
}

func (s *SMTPSender) Send(ctx context.Context, settings models.EmailSettings, msg Message) error {
	if settings.SMTPHost == "" {
		return apperrors.Invalid("email.send", "SMTP host is required")
	}

	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return apperrors.Invalid("email.send", "invalid sender address %q: %v", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return apperrors.Invalid("email.send", "invalid recipient address %q: %v", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(settings.SMTPPort),
		mail.WithTimeout(s.timeout),
	}
	if settings.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.Username),
			mail.WithPassword(settings.Password),
		)
	}

	client, err := mail.NewClient(settings.SMTPHost, opts...)
	if err != nil {
		return apperrors.Invalid("email.send", "smtp client: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return apperrors.Delivery("email.send", err)
	}
	return nil
}
