package types

import "time"

// ActivityEvent is an immutable snapshot of one review-activity record at
// dispatch time. It is created from the host's raw event payload, consumed by
// exactly one dispatch attempt, and discarded. Fields the host did not supply
// stay zero-valued; accessors degrade to placeholders instead of failing.
type ActivityEvent struct {
	// ID is opaque but stable per logical event (comment id, review id, ...).
	// It anchors the deduplication key.
	ID          string
	Action      string
	AuthorID    string
	Description string

	// Raw carries action-specific extras the host attached to the activity
	// (testStatus, testUrl, originalCommentId, current.body, ...). Values are
	// JSON-decoded, so nested objects arrive as map[string]any.
	Raw map[string]any
}

// GetString returns the named raw field as a string, or "" when absent or of
// another type. Upstream payload schemas drift; callers must never fail on a
// missing field.
func (e *ActivityEvent) GetString(field string) string {
	if e == nil || e.Raw == nil {
		return ""
	}
	s, _ := e.Raw[field].(string)
	return s
}

// GetNested returns raw[outer][inner] as a string, tolerating any missing or
// mistyped level.
func (e *ActivityEvent) GetNested(outer, inner string) string {
	if e == nil || e.Raw == nil {
		return ""
	}
	m, _ := e.Raw[outer].(map[string]any)
	if m == nil {
		return ""
	}
	s, _ := m[inner].(string)
	return s
}

// CommentBody extracts the comment text from an activity record, following
// the host's fallback chain: body, then current.body, then a placeholder.
func (e *ActivityEvent) CommentBody() string {
	if body := e.GetString("body"); body != "" {
		return body
	}
	if body := e.GetNested("current", "body"); body != "" {
		return body
	}
	return "No comment text"
}

// OriginalCommentID returns the id of the comment a reply refers to, from
// current.context.comment, or "" when the reference is absent.
func (e *ActivityEvent) OriginalCommentID() string {
	if e == nil || e.Raw == nil {
		return ""
	}
	current, _ := e.Raw["current"].(map[string]any)
	if current == nil {
		return ""
	}
	context, _ := current["context"].(map[string]any)
	if context == nil {
		return ""
	}
	s, _ := context["comment"].(string)
	return s
}

// ReviewSnapshot is a read-only view of a review, fetched fresh for every
// dispatch. Review state (especially the reviewer set) changes between
// events, so snapshots are never cached.
type ReviewSnapshot struct {
	ID          string
	AuthorID    string
	Description string
	ReviewerIDs []string
}

// User is an internal review-system identity. Email is the stable attribute
// used to resolve the external chat identity.
type User struct {
	ID       string
	FullName string
	Email    string
}

// DisplayName returns the user's full name, falling back to the id.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.ID
}

// Comment is a stored review comment, looked up when a reply activity
// references its original.
type Comment struct {
	ID       string
	ReviewID string
	AuthorID string
	Body     string
}

// Message is the channel-neutral notification payload produced by the
// builder: one per recipient, never shared, rendered to the wire format by
// the transport.
type Message struct {
	// Target is a Slack channel name or a Slack user id for direct messages.
	Target      string
	SummaryText string
	Sections    []Section
	Links       []Link
}

// Section is one ordered block of message text.
type Section struct {
	Kind SectionKind
	Text string
}

// Link is a labeled URL appended to a message.
type Link struct {
	Label string
	URL   string
}

// RecipientMapping records one resolved internal → external identity with
// the time it was resolved, for TTL bookkeeping in the resolver cache.
type RecipientMapping struct {
	Email      string
	SlackID    string
	ResolvedAt time.Time
}
