package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"iprisk-backend/internal/bootstrap"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/stages"
	"iprisk-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 900
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()

	queues := stageQueues(cfg.StageQueueURLs)
	if len(queues) == 0 {
		log.Fatal("at least one SQS_QUEUE_URL_<STAGE> is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "iprisk-worker", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(flushCtx)
		}()
	}

	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency
	}
	shutdownSeconds := cfg.ShutdownTimeoutSeconds
	if shutdownSeconds <= 0 {
		shutdownSeconds = defaultShutdownTimeoutSec
	}
	shutdownTimeout := time.Duration(shutdownSeconds) * time.Second

	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var pollers sync.WaitGroup

	for stage, queueURL := range queues {
		log.Printf("worker polling stage=%s queue=%s concurrency=%d visibility=%ds", stage, queueURL, concurrency, visibilitySeconds)
		pollers.Add(1)
		go func(stage stages.Name, queueURL string) {
			defer pollers.Done()
			poll(ctx, sqsClient, app.Pipeline, stage, queueURL, visibilitySeconds, sem, &wg)
		}(stage, queueURL)
	}
	pollers.Wait()

	log.Printf("shutdown requested, waiting up to %s for in-flight tasks", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight tasks")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// stageQueues keeps the configured queues whose key is a known stage.
func stageQueues(urls map[string]string) map[stages.Name]string {
	out := make(map[stages.Name]string)
	for raw, url := range urls {
		stage, err := stages.Parse(raw)
		if err != nil || strings.TrimSpace(url) == "" {
			continue
		}
		out[stage] = strings.TrimSpace(url)
	}
	return out
}

func poll(ctx context.Context, client sqsAPI, handler invoker.Handler, stage stages.Name, queueURL string, visibilitySeconds int, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.receive_failed", map[string]any{"stage": string(stage), "error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			metrics.IncTasksReceived(string(stage))
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, client, queueURL, stage, handler, m)
			}(msg)
		}
	}
}

// handleMessage runs one task. The message is deleted on success or when it
// can never succeed; otherwise it is left for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, stage stages.Name, handler invoker.Handler, msg sqstypes.Message) {
	// A received task runs to completion; shutdown only stops polling.
	ctx = telemetry.Detached(ctx)
	body := aws.ToString(msg.Body)

	task, meta, err := workerproc.ParseMessage(body)
	if err == nil && task.Stage != stage {
		err = workerproc.ErrInvalidStage{Meta: meta, AnalysisRunID: task.AnalysisRunID, Stage: string(task.Stage)}
	}
	if err != nil {
		fields := baseFields(msg, stage, task.AnalysisRunID, task.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.task.rejected", fields)
		if deleteMessage(ctx, client, queueURL, msg, stage, task.AnalysisRunID, task.RequestID) {
			metrics.IncTasksDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.task.received", baseFields(msg, stage, task.AnalysisRunID, task.RequestID))

	parsedCtx := workerproc.WithParsedTask(ctx, task)
	if err := workerproc.HandleMessage(parsedCtx, handler, body); err != nil {
		fields := baseFields(msg, stage, task.AnalysisRunID, task.RequestID)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.task.rejected", fields)
			if deleteMessage(ctx, client, queueURL, msg, stage, task.AnalysisRunID, task.RequestID) {
				metrics.IncTasksDeletedUnrecoverable()
			}
			return
		}
		telemetry.Error("worker.task.failed", fields)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, stage, task.AnalysisRunID, task.RequestID) {
		telemetry.Info("worker.task.completed", baseFields(msg, stage, task.AnalysisRunID, task.RequestID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, stage stages.Name, runID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, stage, runID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.task.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, stage, runID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.task.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, stage stages.Name, runID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_run_id": runID,
		"stage":           string(stage),
		"sqs_message_id":  aws.ToString(msg.MessageId),
		"receive_count":   receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
