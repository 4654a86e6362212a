// Package queue provides the SQS producer carrying activity events from the
// event gateway to the notify worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"reviewnotify/internal/config"
	"reviewnotify/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ActivityTrigger serializes ActivityMessages and enqueues them on the
// activity queue for the notify worker.
type ActivityTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewActivityTrigger creates an ActivityTrigger reading the queue URL from
// the AWS configuration.
func NewActivityTrigger(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *ActivityTrigger {
	return &ActivityTrigger{
		client:   client,
		queueURL: awsCfg.ActivityQueue,
		logger:   logger,
	}
}

// SendActivity enqueues one activity message. A missing trace id is filled
// in here so the worker always has one to propagate.
func (t *ActivityTrigger) SendActivity(ctx context.Context, msg types.ActivityMessage, reason string) error {
	if msg.TraceID == "" {
		msg.TraceID = uuid.New().String()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ActivityMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send ActivityMessage to %s: %w", t.queueURL, err)
	}

	t.logger.InfoContext(ctx, "activity message sent",
		"queue_url", t.queueURL,
		"trace_id", msg.TraceID,
		"review_id", msg.ReviewID,
		"activity_id", msg.ActivityID,
		"raw_action", msg.ActivityAction,
		"reason", reason,
	)

	return nil
}
