// internal/common/aws/notifier.go
package aws

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"finance-agent/internal/models"
)

// Notifier delivers a batch notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LoadConfig resolves credentials the standard AWS way for region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// MultiNotifier sends through every channel and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
