package mail

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Mailer sends transactional email over SMTP. Every send is
// best-effort: failures are logged and reported as false, they never
// fail the operation that triggered the email.
type Mailer struct {
	enabled  bool
	dialer   *gomail.Dialer
	from     string
	fromName string
	logger   *zap.Logger
}

// NewMailer builds a mailer from SMTP configuration.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		enabled:  cfg.Enabled,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// Send delivers one message, returning whether delivery succeeded.
func (m *Mailer) Send(to, subject, plainBody, htmlBody string) bool {
	if !m.enabled || to == "" {
		return false
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Warn("email delivery failed",
			zap.String("subject", subject),
			zap.Error(err))
		return false
	}
	return true
}

// SendWelcome greets a freshly registered account.
func (m *Mailer) SendWelcome(to, fullName string) bool {
	subject := "Welcome to support"
	plain := fmt.Sprintf("Hello %s,\n\nYour support account is ready. You can now open tickets and track their progress.\n", fullName)
	html := fmt.Sprintf("<html><body><h2>Welcome, %s!</h2><p>Your support account is ready. You can now open tickets and track their progress.</p></body></html>", fullName)
	return m.Send(to, subject, plain, html)
}

// SendTicketReceived confirms a new ticket, quoting its reference.
func (m *Mailer) SendTicketReceived(to, fullName, reference, subjectLine string) bool {
	subject := fmt.Sprintf("We received your request (%s)", reference)
	plain := fmt.Sprintf("Hello %s,\n\nYour request %q has been recorded with reference %s. Our team will get back to you shortly.\n", fullName, subjectLine, reference)
	html := fmt.Sprintf("<html><body><h2>Request received</h2><p>Hello %s,</p><p>Your request <b>%s</b> has been recorded with reference <b>%s</b>. Our team will get back to you shortly.</p></body></html>", fullName, subjectLine, reference)
	return m.Send(to, subject, plain, html)
}

// SendPasswordReset carries the single-use reset token.
func (m *Mailer) SendPasswordReset(to, fullName, token string, ttlMinutes int) bool {
	subject := "Reset your password"
	plain := fmt.Sprintf("Hello %s,\n\nUse the following code to reset your password:\n\n%s\n\nIt expires in %d minutes. If you did not request this, ignore this email.\n", fullName, token, ttlMinutes)
	html := fmt.Sprintf("<html><body><h2>Password reset</h2><p>Hello %s,</p><p>Use the following code to reset your password:</p><p><b>%s</b></p><p>It expires in %d minutes. If you did not request this, ignore this email.</p></body></html>", fullName, token, ttlMinutes)
	return m.Send(to, subject, plain, html)
}

// SendOneTimeCode delivers a login OTP.
func (m *Mailer) SendOneTimeCode(to, fullName, code string, ttlSeconds int) bool {
	subject := "Your one-time login code"
	plain := fmt.Sprintf("Hello %s,\n\nYour one-time login code is %s. It expires in %d seconds.\n", fullName, code, ttlSeconds)
	html := fmt.Sprintf("<html><body><h2>One-time code</h2><p>Hello %s,</p><p>Your one-time login code is <b>%s</b>. It expires in %d seconds.</p></body></html>", fullName, code, ttlSeconds)
	return m.Send(to, subject, plain, html)
}
