// internal/common/aws/sqs.go
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	apperrors "geoquery-worker/internal/common/errors"
)

// Message is a received queue message.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSClient struct {
	client      sqsAPI
	queueURL    string
	waitSeconds int32
	maxMessages int32
}

type SQSOptions struct {
	QueueURL            string
	WaitTimeSeconds     int32
	MaxNumberOfMessages int32
}

func NewSQSClient(cfg awssdk.Config, endpoint string, opts SQSOptions) *SQSClient {
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
		}
	})
	return newSQSClient(client, opts)
}

func newSQSClient(api sqsAPI, opts SQSOptions) *SQSClient {
	return &SQSClient{
		client:      api,
		queueURL:    opts.QueueURL,
		waitSeconds: opts.WaitTimeSeconds,
		maxMessages: opts.MaxNumberOfMessages,
	}
}

func (s *SQSClient) QueueURL() string {
	return s.queueURL
}

// Receive long-polls for up to maxMessages, requesting every system and
// custom attribute.
func (s *SQSClient) Receive(ctx context.Context) ([]Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              awssdk.String(s.queueURL),
		MaxNumberOfMessages:   s.maxMessages,
		WaitTimeSeconds:       s.waitSeconds,
		AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameAll},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, apperrors.NewQueueReceiveError(err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            awssdk.ToString(m.MessageId),
			ReceiptHandle: awssdk.ToString(m.ReceiptHandle),
			Body:          awssdk.ToString(m.Body),
			Attributes:    make(map[string]string, len(m.Attributes)+len(m.MessageAttributes)),
		}
		for k, v := range m.Attributes {
			msg.Attributes[k] = v
		}
		for k, v := range m.MessageAttributes {
			if v.StringValue != nil {
				msg.Attributes[k] = *v.StringValue
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete acknowledges a message by its receipt handle.
func (s *SQSClient) Delete(ctx context.Context, msg Message) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      awssdk.String(s.queueURL),
		ReceiptHandle: awssdk.String(msg.ReceiptHandle),
	})
	if err != nil {
		return apperrors.NewQueueDeleteError(msg.ID, err)
	}
	return nil
}

// Send enqueues body and returns the assigned message id.
func (s *SQSClient) Send(ctx context.Context, body string) (string, error) {
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    awssdk.String(s.queueURL),
		MessageBody: awssdk.String(body),
	})
	if err != nil {
		return "", apperrors.NewQueueSendError(err)
	}
	return awssdk.ToString(out.MessageId), nil
}
