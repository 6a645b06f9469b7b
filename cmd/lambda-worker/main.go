package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"iprisk-backend/internal/bootstrap"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	if _, err := telemetry.InitTracing(context.Background(), "iprisk-worker", cfg.OTLPEndpoint); err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Pipeline, event), nil
}

// processBatch reports retryable failures only; unrecoverable messages are
// dropped so they do not loop until the redrive limit.
func processBatch(ctx context.Context, h invoker.Handler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := workerproc.HandleMessage(ctx, h, record.Body)
		if err == nil {
			continue
		}
		fields := map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()}
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.task.rejected", fields)
			metrics.IncTasksDeletedUnrecoverable()
			continue
		}
		telemetry.Error("worker.task.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
