package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Joello61/candi-tracker-api/internal/config"
	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/utils"
)

type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// NewSMSSender picks the provider named by cfg.Provider. Missing credentials yield a sender
// that always reports ErrSenderNotConfigured.
func NewSMSSender(ctx context.Context, cfg config.SMSConfig, log logger.Logger) (SMSSender, error) {
	switch cfg.Provider {
	case "mobizon":
		c := utils.NewMobizonClient(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.BaseURL, cfg.Mobizon.DryRun)
		return NewMobizonSMSSender(c, log), nil
	case "twilio":
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.From == "" {
			log.Warn("twilio credentials missing, sms disabled", nil)
			return noopSMSSender{}, nil
		}
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.Twilio.AccountSID,
			Password: cfg.Twilio.AuthToken,
		})
		return NewTwilioSMSSender(client.Api, cfg.Twilio.From), nil
	case "sns":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSNSSMSSender(sns.NewFromConfig(awsCfg)), nil
	default:
		return noopSMSSender{}, nil
	}
}

type noopSMSSender struct{}

func (noopSMSSender) Send(context.Context, string, string) error { return ErrSenderNotConfigured }

type mobizonSMSSender struct {
	client *utils.MobizonClient
	log    logger.Logger
}

func NewMobizonSMSSender(client *utils.MobizonClient, log logger.Logger) SMSSender {
	return &mobizonSMSSender{client: client, log: log}
}

func (s *mobizonSMSSender) Send(ctx context.Context, to, message string) error {
	if !s.client.Configured() {
		if !s.client.DryRun {
			return ErrSenderNotConfigured
		}
		s.log.Info("sms dry-run", map[string]interface{}{"to": to, "length": len(message)})
		return nil
	}
	resp, err := s.client.SendSMS(ctx, to, message)
	if err != nil {
		return fmt.Errorf("mobizon: %w", err)
	}
	s.log.Debug("sms sent", map[string]interface{}{"to": to, "message_id": resp.Data.MessageID})
	return nil
}

// TwilioMessagesAPI is the subset of the Twilio v2010 API used here.
type TwilioMessagesAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioSMSSender struct {
	api  TwilioMessagesAPI
	from string
}

func NewTwilioSMSSender(api TwilioMessagesAPI, from string) SMSSender {
	return &twilioSMSSender{api: api, from: from}
}

func (s *twilioSMSSender) Send(ctx context.Context, to, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(message)

	done := make(chan error, 1)
	go func() {
		_, err := s.api.CreateMessage(params)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("twilio: %w", ctx.Err())
	}
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type snsSMSSender struct {
	client SNSAPI
}

func NewSNSSMSSender(client SNSAPI) SMSSender {
	return &snsSMSSender{client: client}
}

func (s *snsSMSSender) Send(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
