// internal/common/aws/config.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Credentials are the static keys the worker is deployed with.
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig builds an SDK config from static credentials. Empty keys fall
// back to the default credential chain.
func LoadConfig(ctx context.Context, creds Credentials) (awssdk.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
