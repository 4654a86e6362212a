package types

// Action is the closed vocabulary of review-activity kinds this service
// understands. Raw host actions are mapped onto it by the classifier;
// anything outside the vocabulary becomes ActionUnknown.
type Action string

const (
	ActionReviewRequested Action = "review_requested"
	ActionNeedsReview     Action = "needs_review"
	ActionNeedsRevision   Action = "needs_revision"
	ActionApproved        Action = "approved"
	ActionCommentAdded    Action = "comment_added"
	ActionCommentReply    Action = "comment_reply"
	ActionTestStatus      Action = "test_status"
	ActionUnknown         Action = "unknown"
)

// Raw action strings as emitted by the review platform's activity stream.
// Several host spellings collapse onto one Action: a comment on the review
// description is still a comment, and test runs report the same way with or
// without an authenticated agent.
const (
	RawReviewRequested    = "requested"
	RawNeedsReview        = "requested further review of"
	RawNeedsRevision      = "requested revisions to"
	RawApproved           = "approved"
	RawCommentAdded       = "commented on"
	RawDescriptionComment = "commented on the description of"
	RawCommentReply       = "replied to a comment on"
	RawTestStatus         = "reported a test status for"
	RawTestStatusUnauthed = "reported an unauthenticated test status for"
)

// TestStatus is the vocabulary of CI outcomes carried by test_status events.
// Unrecognized values render as TestStatusUnknown, never as an error.
type TestStatus string

const (
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
	TestStatusRunning TestStatus = "running"
	TestStatusUnknown TestStatus = "unknown"
)

// DispatchResult categorizes the outcome of one notification dispatch for
// metrics reporting.
type DispatchResult string

const (
	DispatchSent     DispatchResult = "sent"
	DispatchSkipped  DispatchResult = "skipped"
	DispatchFallback DispatchResult = "fallback"
	DispatchFailed   DispatchResult = "failed"
)

// MailOnlyQuietMarker is the one data-quiet value that does NOT suppress this
// notifier: a single-element marker naming only the mail channel. Quiet
// markers are channel-scoped; this notifier honors only markers that name it
// or "all", and the mail-only singleton names neither.
const MailOnlyQuietMarker = "mail"

// SectionKind tags a message section so the transport can choose the right
// rendering block.
type SectionKind string

const (
	SectionHeader  SectionKind = "header"
	SectionBody    SectionKind = "body"
	SectionContext SectionKind = "context"
)
