package invoker

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"iprisk-backend/internal/stages"
)

// SendAPI is the subset of the SQS client used to enqueue tasks.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSInvoker sends each stage's tasks to that stage's queue.
type SQSInvoker struct {
	client    SendAPI
	queueURLs map[stages.Name]string
}

// NewSQS loads AWS config for region and requires a queue URL for every stage.
func NewSQS(ctx context.Context, region string, queueURLs map[string]string) (*SQSInvoker, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSWithClient(sqs.NewFromConfig(cfg), queueURLs)
}

// NewSQSWithClient builds an invoker over an existing client.
func NewSQSWithClient(client SendAPI, queueURLs map[string]string) (*SQSInvoker, error) {
	urls := make(map[stages.Name]string, len(queueURLs))
	for _, stage := range stages.All() {
		url := strings.TrimSpace(queueURLs[string(stage)])
		if url == "" {
			return nil, fmt.Errorf("%w: SQS_QUEUE_URL_%s is required", ErrNoQueue, strings.ToUpper(string(stage)))
		}
		urls[stage] = url
	}
	return &SQSInvoker{client: client, queueURLs: urls}, nil
}

// QueueURL returns the queue configured for stage.
func (s *SQSInvoker) QueueURL(stage stages.Name) string {
	return s.queueURLs[stage]
}

// Invoke enqueues task on its stage queue.
func (s *SQSInvoker) Invoke(ctx context.Context, task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	queueURL, ok := s.queueURLs[task.Stage]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoQueue, task.Stage)
	}
	payload, err := EncodeTask(task)
	if err != nil {
		return fmt.Errorf("encode sqs task: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"stage": {DataType: aws.String("String"), StringValue: aws.String(string(task.Stage))},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

var _ Invoker = (*SQSInvoker)(nil)
