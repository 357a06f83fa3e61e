// Package mail sends account emails carrying verification and reset links.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pathwayfr/pathway/internal/logging"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher delivers a message.
type Dispatcher interface {
	Send(ctx context.Context, m Message) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher delivers through an SMTP relay.
type SMTPDispatcher struct {
	from   string
	dialer sender
}

func NewSMTPDispatcher(host string, port int, username, password, from string) *SMTPDispatcher {
	return &SMTPDispatcher{from: from, dialer: gomail.NewDialer(host, port, username, password)}
}

func (d *SMTPDispatcher) Send(_ context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("empty recipient")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", d.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)

	if err := d.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogDispatcher only logs messages. It is used when no SMTP host is set.
type LogDispatcher struct {
	l logging.Logger
}

func NewLogDispatcher(l logging.Logger) *LogDispatcher {
	return &LogDispatcher{l: l.With("module", "mail")}
}

// Send logs the recipient and subject. Bodies carry live links and are only
// logged at debug level.
func (d *LogDispatcher) Send(ctx context.Context, m Message) error {
	d.l.Info(ctx, "email not sent, smtp disabled", "to", m.To, "subject", m.Subject)
	d.l.Debug(ctx, "email body", "to", m.To, "body", m.Body)
	return nil
}

func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/verify/" + url.PathEscape(token)
}

func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/forgot-password/" + url.PathEscape(token)
}

// Notifier composes the account emails. Link lifetimes are quoted in the
// body when set.
type Notifier struct {
	d         Dispatcher
	baseURL   string
	verifyTTL time.Duration
	resetTTL  time.Duration
}

func NewNotifier(d Dispatcher, baseURL string, verifyTTL, resetTTL time.Duration) *Notifier {
	return &Notifier{d: d, baseURL: baseURL, verifyTTL: verifyTTL, resetTTL: resetTTL}
}

func (n *Notifier) SendVerification(ctx context.Context, to, firstName, token string) error {
	return n.d.Send(ctx, Message{
		To:      to,
		Subject: "Confirm your email",
		Body: fmt.Sprintf("Hello %s,\n\nPlease confirm your email address by opening the link below:\n%s\n%s",
			firstName, VerificationLink(n.baseURL, token), expiryNote(n.verifyTTL)),
	})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, token string) error {
	return n.d.Send(ctx, Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("A password reset was requested for your account.\n\nOpen the link below to choose a new password:\n%s\n%s\nIf you did not ask for this, ignore this email.\n",
			ResetLink(n.baseURL, token), expiryNote(n.resetTTL)),
	})
}

func expiryNote(ttl time.Duration) string {
	if ttl <= 0 {
		return ""
	}
	return "\nThe link expires in " + humanDuration(ttl) + ".\n"
}

// humanDuration spells whole days, hours and minutes; anything else falls
// back to time.Duration formatting.
func humanDuration(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d%(24*time.Hour) == 0:
		return unit(int64(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func (n *Notifier) SendPasswordChanged(ctx context.Context, to string) error {
	return n.d.Send(ctx, Message{
		To:      to,
		Subject: "Your password was changed",
		Body:    "The password of your account has just been changed. If this was not you, reset it immediately.\n",
	})
}
