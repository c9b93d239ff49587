// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/models"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes batch notifications to a topic.
type SNSNotifier struct {
	client   SNSService
	topicARN string
}

func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN)
}

func NewSNSNotifierWithClient(client SNSService, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

func (s *SNSNotifier) Notify(ctx context.Context, n models.Notification) error {
	attrs := map[string]snstypes.MessageAttributeValue{
		"jobId": {DataType: aws.String("String"), StringValue: aws.String(n.JobID)},
	}
	for k, v := range n.Attrs {
		attrs[k] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Subject:           aws.String(n.Subject),
		Message:           aws.String(n.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError("sns", err)
	}
	return nil
}
