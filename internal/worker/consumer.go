package worker

import (
	"context"
	"sync"
	"time"

	"clockreport.service/pkg/logger"
	"clockreport.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// longPollSeconds is the SQS maximum; an idle queue costs one call per 20s.
const longPollSeconds = 20

type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Processor handles one queue message. When shouldRetry is set together with
// an error, the message becomes visible again after retryDelay seconds.
type Processor interface {
	Process(ctx context.Context, msg types.Message) (shouldRetry bool, retryDelay int32, err error)
}

// Worker long-polls a queue and fans messages out to a fixed pool of
// processor goroutines.
type Worker struct {
	client    SQSClient
	queueURL  string
	processor Processor

	// Concurrency is the pool size and the receive batch size.
	Concurrency int
	// ErrorBackoff is how long the poller waits after a failed receive.
	ErrorBackoff time.Duration
}

// NewWorker creates a worker for queueURL with ten processors.
func NewWorker(client SQSClient, queueURL string, proc Processor) *Worker {
	return &Worker{
		client:       client,
		queueURL:     queueURL,
		processor:    proc,
		Concurrency:  10,
		ErrorBackoff: 5 * time.Second,
	}
}

// Start polls until ctx is canceled. It returns after the poller has stopped
// and every message already received has been handled.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Str("queue", w.queueURL).Int("concurrency", w.Concurrency).Msg("Worker started")

	jobs := make(chan types.Message, w.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				w.handle(ctx, msg)
			}
		}()
	}

	w.poll(ctx, jobs)
	close(jobs)
	wg.Wait()

	log.Info().Str("queue", w.queueURL).Msg("Worker stopped")
}

func (w *Worker) poll(ctx context.Context, jobs chan<- types.Message) {
	for ctx.Err() == nil {
		msgs, err := w.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Dur("backoff", w.ErrorBackoff).Msg("Receive failed")
			w.sleep(ctx, w.ErrorBackoff)
			continue
		}

		if len(msgs) > 0 {
			log.Debug().Int("count", len(msgs)).Msg("Received messages")
		}
		for _, msg := range msgs {
			jobs <- msg
		}
	}
}

func (w *Worker) receive(ctx context.Context) ([]types.Message, error) {
	out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &w.queueURL,
		MaxNumberOfMessages: int32(w.Concurrency),
		WaitTimeSeconds:     longPollSeconds,
		// trace context travels in the message attributes
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// handle runs the processor on msg, then either acknowledges the message or
// pushes its next delivery out by the requested delay.
func (w *Worker) handle(ctx context.Context, msg types.Message) {
	ctx, span := telemetry.StartSpanFromSQSMessage(ctx, msg)
	defer span.End()
	ctx = logger.EnrichContextWithLogger(ctx)

	retry, delay, err := w.processor.Process(ctx, msg)
	switch {
	case err != nil && retry:
		log.Ctx(ctx).Warn().Err(err).Int32("retry_delay", delay).Msg("Processing failed, will retry")
		w.retryLater(ctx, msg, delay)
		return
	case err != nil:
		// poison messages are dropped instead of being redelivered forever
		log.Ctx(ctx).Error().Err(err).Msg("Dropping message that cannot be processed")
	}
	w.ack(ctx, msg)
}

func (w *Worker) ack(ctx context.Context, msg types.Message) {
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &w.queueURL,
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to delete message")
	}
}

func (w *Worker) retryLater(ctx context.Context, msg types.Message, delay int32) {
	_, err := w.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &w.queueURL,
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: delay,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to change message visibility")
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
