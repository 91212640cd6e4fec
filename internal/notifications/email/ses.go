package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"cinotify/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESProvider.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Message is one pre-rendered email.
type Message struct {
	To          string
	FromAddress string
	FromName    string
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// Provider transmits a rendered message and returns the provider message ID.
type Provider interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SESProvider implements Provider using AWS SES v2. The SDK retries
// throttling errors on its own.
type SESProvider struct {
	api SESAPI
}

// NewSESProvider creates a provider from an AWS config.
func NewSESProvider(awsCfg aws.Config) *SESProvider {
	return &SESProvider{api: sesv2.NewFromConfig(awsCfg)}
}

// NewSESProviderWithAPI creates a provider around api, used by tests.
func NewSESProviderWithAPI(api SESAPI) *SESProvider {
	return &SESProvider{api: api}
}

var _ Provider = (*SESProvider)(nil)

// Send transmits msg as simple content.
//
// Error mapping:
//   - MessageRejected -> ErrCodeUpstreamEmailBlocked
//   - TooManyRequestsException -> ErrCodeUpstreamRateLimited
//   - SendingPausedException -> ErrCodeUpstreamUnavailable
//   - Other -> ErrCodeUpstreamEmailProvider
func (s *SESProvider) Send(ctx context.Context, msg Message) (string, error) {
	from := msg.FromAddress
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromAddress)
	}

	body := &sestypes.Body{}
	if msg.BodyHTML != "" {
		body.Html = &sestypes.Content{Data: aws.String(msg.BodyHTML), Charset: aws.String("UTF-8")}
	}
	if msg.BodyText != "" {
		body.Text = &sestypes.Content{Data: aws.String(msg.BodyText), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if msg.ReferenceID != "" {
		input.EmailTags = []sestypes.MessageTag{{Name: aws.String("RequestID"), Value: aws.String(msg.ReferenceID)}}
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	if errors.As(err, &rejected) {
		return types.NewAppError(types.ErrCodeUpstreamEmailBlocked, "SES rejected message", err)
	}
	var throttled *sestypes.TooManyRequestsException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	}
	var paused *sestypes.SendingPausedException
	if errors.As(err, &paused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES account sending paused", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES error", err)
}
