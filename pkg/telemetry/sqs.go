package telemetry

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// UserRefKey holds the user reference of the message being processed.
const UserRefKey contextKey = "userRef"

// StartSpanFromSQSMessage continues the producer's trace from the message
// attributes and starts a consumer span for msg.
func StartSpanFromSQSMessage(ctx context.Context, msg types.Message) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, attributeCarrier(msg.MessageAttributes))

	ctx, span := otel.Tracer("sqs-worker").Start(ctx, "process_message",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "aws_sqs"),
			attribute.String("messaging.message_id", aws.ToString(msg.MessageId)),
		),
	)

	if ref := userRefFromBody(msg.Body); ref != "" {
		span.SetAttributes(attribute.String("app.user_ref", ref))
		ctx = context.WithValue(ctx, UserRefKey, ref)
	}
	return ctx, span
}

func userRefFromBody(body *string) string {
	if body == nil {
		return ""
	}
	var payload struct {
		UserRef string `json:"userRef"`
	}
	if err := json.Unmarshal([]byte(*body), &payload); err != nil {
		return ""
	}
	return payload.UserRef
}

// GetUserRefFromContext returns the user reference set by
// StartSpanFromSQSMessage, or "".
func GetUserRefFromContext(ctx context.Context) string {
	ref, _ := ctx.Value(UserRefKey).(string)
	return ref
}

// InjectTraceContext returns message attributes carrying the trace context of ctx.
func InjectTraceContext(ctx context.Context) map[string]types.MessageAttributeValue {
	attrs := attributeCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, attrs)
	return attrs
}

// attributeCarrier adapts SQS message attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]types.MessageAttributeValue

func (c attributeCarrier) Get(key string) string {
	if attr, ok := c[key]; ok {
		return aws.ToString(attr.StringValue)
	}
	return ""
}

func (c attributeCarrier) Set(key, value string) {
	c[key] = types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
