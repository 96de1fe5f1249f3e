package email

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	core "clockreport.service/internal/core"
	"clockreport.service/internal/ports/messaging"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type EmailProcessor struct {
	emailService core.EmailService
	recipient    string
}

// NewProcessor sets up a new processor for stale clock-in reminders.
// Every reminder goes to the same supervisor address.
func NewProcessor(emailService core.EmailService, recipient string) *EmailProcessor {
	return &EmailProcessor{
		emailService: emailService,
		recipient:    recipient,
	}
}

// Process is the main entry point for handling a message from the reminder queue.
// It tries to send an email and will tell the worker to retry if something goes wrong.
func (p *EmailProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, fmt.Errorf("reminder message has no body")
	}

	var event messaging.StaleClockInEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal reminder event")
		return false, 0, err // Do not retry on malformed message
	}
	if event.EventID == 0 {
		return false, 0, fmt.Errorf("reminder message has no event id")
	}
	if event.DisplayName == "" {
		event.DisplayName = event.UserRef
	}

	err := p.emailService.SendStaleReminder(ctx, p.recipient, event)
	if err != nil {
		delay := calculateBackoff(receiveCount(msg))
		return true, delay, err
	}

	log.Ctx(ctx).Info().Int64("event_id", event.EventID).Msg("Stale clock-in reminder sent")
	return false, 0, nil
}

// receiveCount reads how many times SQS has delivered the message; 1 if unknown.
func receiveCount(msg types.Message) int {
	raw, ok := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming a struggling service.
func calculateBackoff(retryCount int) int32 {
	backoff := math.Pow(2, float64(retryCount)) * 10
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return int32(backoff)
}
