package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/resend/resend-go/v3"
	"gopkg.in/gomail.v2"

	"github.com/Joello61/candi-tracker-api/internal/config"
	"github.com/Joello61/candi-tracker-api/internal/logger"
)

// ErrSenderNotConfigured is returned by channels that have no provider configured.
var ErrSenderNotConfigured = errors.New("sender not configured")

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NewEmailSender picks the transport named by cfg.Provider.
func NewEmailSender(ctx context.Context, cfg config.EmailConfig, log logger.Logger) (EmailSender, error) {
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	switch cfg.Provider {
	case "smtp":
		return NewSMTPEmailSender(cfg.SMTP, from), nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSESEmailSender(ses.NewFromConfig(awsCfg), cfg.FromEmail), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			log.Warn("resend api key missing, email disabled", nil)
			return noopEmailSender{}, nil
		}
		return NewResendEmailSender(resend.NewClient(cfg.ResendAPIKey), from), nil
	default:
		return noopEmailSender{}, nil
	}
}

type noopEmailSender struct{}

func (noopEmailSender) Send(context.Context, EmailMessage) error { return ErrSenderNotConfigured }

type smtpEmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPEmailSender(cfg config.SMTPConfig, from string) EmailSender {
	return &smtpEmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
	}
}

func (s *smtpEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	// gomail has no context support; the dial keeps running in the background after a timeout.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type sesEmailSender struct {
	client SESAPI
	from   string
}

func NewSESEmailSender(client SESAPI, from string) EmailSender {
	return &sesEmailSender{client: client, from: from}
}

func (s *sesEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	body := &sestypes.Body{Html: &sestypes.Content{Data: aws.String(msg.HTML)}}
	if msg.Text != "" {
		body.Text = &sestypes.Content{Data: aws.String(msg.Text)}
	}
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: []string{msg.To}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

type resendEmailSender struct {
	client *resend.Client
	from   string
}

func NewResendEmailSender(client *resend.Client, from string) EmailSender {
	return &resendEmailSender{client: client, from: from}
}

func (s *resendEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
