package core

import (
	"context"
	"fmt"
	"time"

	"clockreport.service/internal/core/model"
	"clockreport.service/internal/ports/messaging"
	"clockreport.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type EmailService interface {
	SendStaleReminder(ctx context.Context, to string, event messaging.StaleClockInEvent) error
}

// SESClient is the part of the SES client the email service uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESEmailService struct {
	client SESClient
	sender string
	loc    *time.Location
}

func NewSESEmailService(client SESClient, sender string, loc *time.Location) *SESEmailService {
	if loc == nil {
		loc = time.UTC
	}
	return &SESEmailService{client: client, sender: sender, loc: loc}
}

func (s *SESEmailService) SendStaleReminder(ctx context.Context, to string, event messaging.StaleClockInEvent) error {
	tracer := otel.Tracer("ses-email-service")
	ctx, span := tracer.Start(ctx, "send_email", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if ref := telemetry.GetUserRefFromContext(ctx); ref != "" {
		span.SetAttributes(attribute.String("app.user_ref", ref))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Not clocked out: %s", event.DisplayName)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(reminderBody(event, s.loc)),
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}

func reminderBody(event messaging.StaleClockInEvent, loc *time.Location) string {
	return fmt.Sprintf("Hello,\n\n%s clocked in at %s and has not clocked out since.\n"+
		"Please review time clock record %d.",
		event.DisplayName, event.ClockInTime.In(loc).Format(model.DisplayTimeLayout), event.EventID)
}
