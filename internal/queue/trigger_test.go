package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"reviewnotify/internal/config"
	"reviewnotify/internal/types"
)

// mockSQSSender captures SendMessage calls for test assertions.
type mockSQSSender struct {
	calls []*sqs.SendMessageInput
	err   error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/review-activity"

func newTestTrigger(mock *mockSQSSender) *ActivityTrigger {
	awsCfg := config.AWSConfig{ActivityQueue: testQueueURL}
	return NewActivityTrigger(mock, awsCfg, slog.Default())
}

func sampleMessage() types.ActivityMessage {
	return types.ActivityMessage{
		TraceID:          "trace-1",
		ReviewID:         "42",
		ActivityID:       "c-100",
		ActivityAction:   types.RawCommentAdded,
		ActivityAuthorID: "bob",
		ActivityRaw:      map[string]any{"body": "nice"},
		DataQuiet:        []string{"mail"},
	}
}

func TestSendActivityPreservesPayload(t *testing.T) {
	mock := &mockSQSSender{}
	trigger := newTestTrigger(mock)

	original := sampleMessage()
	if err := trigger.SendActivity(context.Background(), original, "host_event"); err != nil {
		t.Fatalf("SendActivity returned unexpected error: %v", err)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 SQS call, got %d", len(mock.calls))
	}
	call := mock.calls[0]
	if *call.QueueUrl != testQueueURL {
		t.Errorf("expected queue URL %q, got %q", testQueueURL, *call.QueueUrl)
	}

	var decoded types.ActivityMessage
	if err := json.Unmarshal([]byte(*call.MessageBody), &decoded); err != nil {
		t.Fatalf("failed to unmarshal message body: %v", err)
	}
	if decoded.TraceID != original.TraceID {
		t.Errorf("TraceID mismatch: got %q, want %q", decoded.TraceID, original.TraceID)
	}
	if decoded.ReviewID != original.ReviewID {
		t.Errorf("ReviewID mismatch: got %q, want %q", decoded.ReviewID, original.ReviewID)
	}
	if decoded.ActivityID != original.ActivityID {
		t.Errorf("ActivityID mismatch: got %q, want %q", decoded.ActivityID, original.ActivityID)
	}
	if decoded.ActivityAction != original.ActivityAction {
		t.Errorf("ActivityAction mismatch: got %q, want %q", decoded.ActivityAction, original.ActivityAction)
	}
	if len(decoded.DataQuiet) != 1 || decoded.DataQuiet[0] != "mail" {
		t.Errorf("DataQuiet mismatch: got %v", decoded.DataQuiet)
	}
	if body, _ := decoded.ActivityRaw["body"].(string); body != "nice" {
		t.Errorf("ActivityRaw not preserved: %v", decoded.ActivityRaw)
	}
}

func TestSendActivityGeneratesTraceID(t *testing.T) {
	mock := &mockSQSSender{}
	trigger := newTestTrigger(mock)

	msg := sampleMessage()
	msg.TraceID = ""
	if err := trigger.SendActivity(context.Background(), msg, "host_event"); err != nil {
		t.Fatalf("SendActivity returned unexpected error: %v", err)
	}

	var decoded types.ActivityMessage
	if err := json.Unmarshal([]byte(*mock.calls[0].MessageBody), &decoded); err != nil {
		t.Fatalf("failed to unmarshal message body: %v", err)
	}
	if decoded.TraceID == "" {
		t.Error("expected generated TraceID for message without one")
	}
}

func TestSendActivitySetsReasonAttribute(t *testing.T) {
	mock := &mockSQSSender{}
	trigger := newTestTrigger(mock)

	if err := trigger.SendActivity(context.Background(), sampleMessage(), "gateway_ingest"); err != nil {
		t.Fatalf("SendActivity returned unexpected error: %v", err)
	}

	attr, ok := mock.calls[0].MessageAttributes["reason"]
	if !ok {
		t.Fatal("expected 'reason' message attribute to be set")
	}
	if *attr.StringValue != "gateway_ingest" {
		t.Errorf("expected reason attribute 'gateway_ingest', got %q", *attr.StringValue)
	}
	if *attr.DataType != "String" {
		t.Errorf("expected DataType 'String', got %q", *attr.DataType)
	}
}

func TestSendActivitySQSError(t *testing.T) {
	mock := &mockSQSSender{err: fmt.Errorf("service unavailable")}
	trigger := newTestTrigger(mock)

	err := trigger.SendActivity(context.Background(), sampleMessage(), "host_event")
	if err == nil {
		t.Fatal("expected error from SendActivity, got nil")
	}
	if !strings.Contains(err.Error(), "failed to send ActivityMessage") {
		t.Errorf("expected error message to mention the send failure, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), testQueueURL) {
		t.Errorf("expected error message to contain queue URL, got %q", err.Error())
	}
}
