package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/stages"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type recordingHandler struct {
	err     error
	tasks   []invoker.Task
	ctxErrs []error
}

func (h *recordingHandler) Handle(ctx context.Context, task invoker.Task) error {
	h.tasks = append(h.tasks, task)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	return h.err
}

func taskMessage(t *testing.T, id string, task invoker.Task) sqstypes.Message {
	t.Helper()
	body, err := invoker.EncodeTask(task)
	require.NoError(t, err)
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("receipt-" + id),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	handler := &recordingHandler{}
	msg := taskMessage(t, "m1", invoker.NewTask("run-1", stages.Search, "req-1"))

	handleMessage(context.Background(), client, "queue", stages.Search, handler, msg)

	assert.Equal(t, []string{"receipt-m1"}, client.deleted)
	require.Len(t, handler.tasks, 1)
	assert.Equal(t, "run-1", handler.tasks[0].AnalysisRunID)
}

func TestWorkerFinishesTaskAfterShutdownSignal(t *testing.T) {
	client := &fakeSQS{}
	handler := &recordingHandler{}
	msg := taskMessage(t, "m5", invoker.NewTask("run-5", stages.Analysis, "req-5"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handleMessage(ctx, client, "queue", stages.Analysis, handler, msg)

	require.Len(t, handler.ctxErrs, 1)
	assert.NoError(t, handler.ctxErrs[0])
	assert.Equal(t, []string{"receipt-m5"}, client.deleted)
}

func TestWorkerKeepsMessageOnStageFailure(t *testing.T) {
	client := &fakeSQS{}
	handler := &recordingHandler{err: errors.New("boom")}
	msg := taskMessage(t, "m2", invoker.NewTask("run-2", stages.Analysis, "req-2"))

	handleMessage(context.Background(), client, "queue", stages.Analysis, handler, msg)

	assert.Empty(t, client.deleted)
	assert.Len(t, handler.tasks, 1)
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	handler := &recordingHandler{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", stages.Search, handler, msg)

	assert.Equal(t, []string{"r3"}, client.deleted)
	assert.Empty(t, handler.tasks)
}

func TestWorkerDeletesTaskForAnotherStage(t *testing.T) {
	client := &fakeSQS{}
	handler := &recordingHandler{}
	msg := taskMessage(t, "m4", invoker.NewTask("run-4", stages.Report, "req-4"))

	handleMessage(context.Background(), client, "queue", stages.Delivery, handler, msg)

	assert.Equal(t, []string{"receipt-m4"}, client.deleted)
	assert.Empty(t, handler.tasks)
}

func TestStageQueuesSkipsUnknownAndEmpty(t *testing.T) {
	got := stageQueues(map[string]string{
		"search":   " https://sqs/search ",
		"analysis": "",
		"billing":  "https://sqs/billing",
	})

	assert.Equal(t, map[stages.Name]string{stages.Search: "https://sqs/search"}, got)
}
