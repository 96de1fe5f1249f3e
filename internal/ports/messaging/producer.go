package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender           MessageSender
	reminderQueueURL string
}

func NewProducer(sender MessageSender, reminderQueueURL string) *Producer {
	return &Producer{
		sender:           sender,
		reminderQueueURL: reminderQueueURL,
	}
}

func NewSQSProducer(client SQSClient, reminderQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, reminderQueueURL)
}

func (p *Producer) PublishReminder(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.reminderQueueURL, body)
}

func (p *Producer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			UserRef string `json:"userRef"`
			EventID int64  `json:"eventId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.UserRef != "" {
			span.SetAttributes(
				attribute.String("app.user_ref", payload.UserRef),
				attribute.Int64("app.event_id", payload.EventID),
			)
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
