// internal/common/aws/sns.go
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	apperrors "geoquery-worker/internal/common/errors"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes pipeline results to a single topic.
type SNSClient struct {
	client   snsAPI
	topicARN string
}

func NewSNSClient(cfg awssdk.Config, endpoint, topicARN string) *SNSClient {
	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
		}
	})
	return &SNSClient{client: client, topicARN: topicARN}
}

// PublishResult sends body with the source message id and a fresh
// publication id as message attributes.
func (s *SNSClient) PublishResult(ctx context.Context, sourceMessageID, status, body string) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"publication_id": stringAttribute(uuid.NewString()),
	}
	// SNS rejects empty attribute values.
	if sourceMessageID != "" {
		attrs["source_message_id"] = stringAttribute(sourceMessageID)
	}
	if status != "" {
		attrs["status"] = stringAttribute(status)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          awssdk.String(s.topicARN),
		Message:           awssdk.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", apperrors.NewResultPublishError(err)
	}
	return awssdk.ToString(out.MessageId), nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    awssdk.String("String"),
		StringValue: awssdk.String(v),
	}
}
