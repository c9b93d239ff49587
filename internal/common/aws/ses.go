// internal/common/aws/ses.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/models"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails batch notifications to a fixed recipient list.
type SESNotifier struct {
	client SESService
	from   string
	to     []string
}

func NewSESNotifier(cfg aws.Config, from string, to []string) *SESNotifier {
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), from, to)
}

func NewSESNotifierWithClient(client SESService, from string, to []string) *SESNotifier {
	return &SESNotifier{client: client, from: from, to: to}
}

func (s *SESNotifier) Notify(ctx context.Context, n models.Notification) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Body)},
			},
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}
