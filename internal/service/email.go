package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/logger"
)

const signature = "\n\nBest regards,\nThe Municipal Library"

// mailer delivers one plain-text message.
type mailer interface {
	send(ctx context.Context, to, toName, subject, body string) error
}

type emailService struct {
	mailer mailer
}

// NewSMTPEmailService sends through an SMTP relay with gomail.
func NewSMTPEmailService(host string, port int, username, password, from string) EmailService {
	return &emailService{mailer: &smtpMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}}
}

// NewSendGridEmailService sends through the SendGrid v3 API.
func NewSendGridEmailService(apiKey, from, fromName string) EmailService {
	return &emailService{mailer: &sendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}}
}

// NewNoopEmailService logs messages instead of sending them.
func NewNoopEmailService() EmailService {
	return &emailService{mailer: noopMailer{}}
}

// NewEmailServiceFromConfig picks the delivery backend named by cfg.Provider.
func NewEmailServiceFromConfig(cfg config.EmailConfig) (EmailService, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
	case "sendgrid":
		return NewSendGridEmailService(cfg.SendGridAPIKey, cfg.From, cfg.FromName), nil
	case "", "none":
		return NewNoopEmailService(), nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

func (s *emailService) SendLoanStatusNotification(ctx context.Context, email, name, itemTitle string, status domain.LoanStatus, note string) error {
	subject := fmt.Sprintf("Your loan request for %s was %s", itemTitle, status)
	body := fmt.Sprintf("Hello %s,\n\nYour loan request for \"%s\" is now %s.", name, itemTitle, status)
	if note != "" {
		body += fmt.Sprintf("\n\nNote from the library: %s", note)
	}
	return s.mailer.send(ctx, email, name, subject, body+signature)
}

func (s *emailService) SendSanctionNotification(ctx context.Context, email, name string, sanction *domain.Sanction) error {
	subject := "A sanction was recorded on your library account"
	body := fmt.Sprintf("Hello %s,\n\nA %s sanction of $%.2f was recorded on your account starting %s.",
		name, sanction.Kind, float64(sanction.AmountCents)/100, sanction.ValidFrom.Format(time.DateOnly))
	if sanction.ValidUntil != nil {
		body += fmt.Sprintf(" New loans are blocked until %s.", sanction.ValidUntil.Format(time.DateOnly))
	} else {
		body += " New loans are blocked until it is settled at the front desk."
	}
	return s.mailer.send(ctx, email, name, subject, body+signature)
}

func (s *emailService) SendOverdueReminder(ctx context.Context, email, name, itemTitle string, dueDate time.Time, daysOverdue int32) error {
	subject := fmt.Sprintf("Overdue: %s", itemTitle)
	body := fmt.Sprintf("Hello %s,\n\n\"%s\" was due on %s and is now %d day(s) overdue. Please return it as soon as possible.",
		name, itemTitle, dueDate.Format(time.DateOnly), daysOverdue)
	return s.mailer.send(ctx, email, name, subject, body+signature)
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (m *smtpMailer) send(ctx context.Context, to, toName, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", to, toName)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	logger.ExternalServiceCall("smtp", "send", "to", to)
	err := m.dialer.DialAndSend(msg)
	logger.ExternalServiceResult("smtp", "send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

type sendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func (m *sendGridMailer) send(ctx context.Context, to, toName, subject, body string) error {
	message := mail.NewV3MailInit(mail.NewEmail(m.fromName, m.from), subject, mail.NewEmail(toName, to), mail.NewContent("text/plain", body))

	logger.ExternalServiceCall("sendgrid", "send", "to", to)
	response, err := m.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	return nil
}

type noopMailer struct{}

func (noopMailer) send(ctx context.Context, to, toName, subject, body string) error {
	logger.DebugContext(ctx, "Email delivery disabled, dropping message", "to", to, "subject", subject)
	return nil
}
