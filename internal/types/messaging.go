package types

// ActivityMessage is the SQS transport envelope carrying one host activity
// event from the gateway to the notify worker. The review is referenced by
// id only; the worker fetches a fresh snapshot at dispatch time.
type ActivityMessage struct {
	TraceID  string `json:"trace_id"`
	ReviewID string `json:"review_id"`

	ActivityID          string         `json:"activity_id"`
	ActivityAction      string         `json:"activity_action"`
	ActivityAuthorID    string         `json:"activity_author_id"`
	ActivityDescription string         `json:"activity_description,omitempty"`
	ActivityRaw         map[string]any `json:"activity_raw,omitempty"`

	// Quiet suppresses all notifications for this event.
	Quiet bool `json:"quiet,omitempty"`
	// DataQuiet lists channels the event asked to silence; see the
	// classifier for the mail-only exception.
	DataQuiet []string `json:"data_quiet,omitempty"`
}

// Event reconstructs the immutable ActivityEvent from the envelope.
func (m *ActivityMessage) Event() *ActivityEvent {
	return &ActivityEvent{
		ID:          m.ActivityID,
		Action:      m.ActivityAction,
		AuthorID:    m.ActivityAuthorID,
		Description: m.ActivityDescription,
		Raw:         m.ActivityRaw,
	}
}

// Metric name and dimension constants for CloudWatch telemetry.
const (
	MetricNamespaceDefault = "ReviewNotify"
	MetricDispatchAttempt  = "NotificationAttempt"
	MetricDispatchLatency  = "NotificationLatency"
	MetricQueueLag         = "ActivityQueueLag"
	MetricResolveCache     = "ResolverCacheLookup"

	DimAction = "Action"
	DimResult = "Result"
	DimCache  = "Cache"
)
