package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESConfig holds configuration for AWS SES delivery.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	FromAddress     string
	FromName        string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender e-mails messages to one recipient through AWS SES.
type SESSender struct {
	client sesAPI
	to     string
	source string
}

// NewSESSender creates a sender for recipient to. Static credentials are used
// when an access key is configured.
func NewSESSender(cfg SESConfig, to string) (*SESSender, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("mailto endpoint requires AWS_REGION")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("mailto endpoint requires SES_FROM_ADDRESS")
	}
	awsCfg := aws.Config{Region: cfg.Region}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	}
	return newSESSender(ses.NewFromConfig(awsCfg), cfg, to), nil
}

func newSESSender(client sesAPI, cfg SESConfig, to string) *SESSender {
	source := cfg.FromAddress
	if cfg.FromName != "" {
		source = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	return &SESSender{client: client, to: to, source: source}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	subject, html, text, err := renderMail(msg)
	if err != nil {
		return err
	}
	input := &ses.SendEmailInput{
		Source: aws.String(s.source),
		Destination: &types.Destination{
			ToAddresses: []string{s.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	return nil
}
