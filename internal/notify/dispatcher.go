package notify

import (
	"context"
	"errors"

	"reviewnotify/internal/lock"
	"reviewnotify/internal/types"
)

// Dispatcher orchestrates one notification attempt per activity event:
// classify, acquire the dedup lock, fetch a fresh review snapshot, gather
// recipients, build and post one payload per recipient.
//
// Error containment: per-recipient failures are logged and counted, never
// propagated; a failed post is dropped, not retried. Only infrastructure
// failures occurring before any send (lock backend, database) are returned
// to the caller, where redelivery is safe because nothing went out.
type Dispatcher struct {
	builder   *Builder
	locker    lock.Locker
	reviews   types.ReviewStore
	users     types.UserStore
	resolver  types.RecipientResolver
	transport types.Transport
	metrics   Metrics
	logger    types.Logger
	clock     types.Clock
}

// NewDispatcher wires a Dispatcher from its collaborators.
func NewDispatcher(
	builder *Builder,
	locker lock.Locker,
	reviews types.ReviewStore,
	users types.UserStore,
	resolver types.RecipientResolver,
	transport types.Transport,
	metrics Metrics,
	logger types.Logger,
) *Dispatcher {
	return &Dispatcher{
		builder:   builder,
		locker:    locker,
		reviews:   reviews,
		users:     users,
		resolver:  resolver,
		transport: transport,
		metrics:   metrics,
		logger:    logger,
		clock:     types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (d *Dispatcher) SetClock(c types.Clock) { d.clock = c }

// Dispatch processes one activity event end to end. A nil return means the
// event is fully handled (sent, skipped, or contained failure); a non-nil
// return means a pre-send infrastructure failure and the event may be
// redelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, m *types.ActivityMessage) error {
	start := d.clock.Now()
	event := m.Event()
	logger := d.logger.With("activity_id", event.ID, "review_id", m.ReviewID)

	action := Classify(event, m.Quiet, m.DataQuiet)
	if action == types.ActionUnknown {
		logger.Info("event ignored", "raw_action", event.Action)
		d.metrics.RecordDispatch(ctx, types.ActionUnknown, types.DispatchSkipped)
		return nil
	}
	logger = logger.With("action", string(action))

	// A self-reply or a reply to a vanished comment sends nothing; decided
	// before the lock so the guard is never entered for a non-notification.
	var original *types.Comment
	if action == types.ActionCommentReply {
		var skip bool
		var err error
		original, skip, err = d.replyOriginal(ctx, event)
		if err != nil {
			return err
		}
		if skip {
			logger.Info("reply skipped", "reason", "self-reply or missing original")
			d.metrics.RecordDispatch(ctx, action, types.DispatchSkipped)
			return nil
		}
	}

	key := notificationKey(action, m.ReviewID, event.ID)
	guard, err := d.locker.Acquire(ctx, key)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeLockTimeout {
			// Aborts this dispatch attempt only; another holder owns the key.
			logger.Warn("dispatch aborted", "key", key, "error", err.Error())
			d.metrics.RecordDispatch(ctx, action, types.DispatchSkipped)
			return nil
		}
		return err
	}
	defer guard.Release(ctx)

	// Fresh snapshot every time: the reviewer set changes between events.
	review, err := d.reviews.GetReview(ctx, m.ReviewID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			logger.Warn("review not found, dropping event")
			d.metrics.RecordDispatch(ctx, action, types.DispatchSkipped)
			return nil
		}
		return err
	}

	actor := d.userOrPlaceholder(ctx, event.AuthorID)

	var outcome dispatchOutcome
	switch action {
	case types.ActionReviewRequested:
		outcome.add(d.post(ctx, logger, d.builder.ReviewRequested(review, actor)))

	case types.ActionNeedsReview:
		if len(review.ReviewerIDs) == 0 {
			outcome.add(d.post(ctx, logger, d.builder.NeedsReviewAggregate(review, actor)))
			break
		}
		for _, reviewerID := range review.ReviewerIDs {
			outcome.add(d.sendDirect(ctx, logger, reviewerID, func(target string) *types.Message {
				return d.builder.NeedsReviewDirect(review, actor, target)
			}))
		}

	case types.ActionNeedsRevision:
		outcome.add(d.sendDirect(ctx, logger, review.AuthorID, func(target string) *types.Message {
			return d.builder.NeedsRevision(review, actor, target)
		}))

	case types.ActionApproved:
		outcome.add(d.sendDirect(ctx, logger, review.AuthorID, func(target string) *types.Message {
			return d.builder.Approved(review, actor, target)
		}))

	case types.ActionTestStatus:
		status := types.TestStatus(event.GetString("testStatus"))
		testURL := event.GetString("testUrl")
		outcome.add(d.sendDirect(ctx, logger, review.AuthorID, func(target string) *types.Message {
			return d.builder.TestStatus(review, status, testURL, target)
		}))

	case types.ActionCommentAdded:
		body := event.CommentBody()
		for _, recipientID := range commentRecipients(review, event.AuthorID) {
			outcome.add(d.sendDirect(ctx, logger, recipientID, func(target string) *types.Message {
				return d.builder.CommentAdded(review, actor, body, target)
			}))
		}

	case types.ActionCommentReply:
		body := event.CommentBody()
		outcome.add(d.sendDirect(ctx, logger, original.AuthorID, func(target string) *types.Message {
			return d.builder.CommentReply(review, actor, body, target)
		}))
	}

	result := outcome.result()
	d.metrics.RecordDispatch(ctx, action, result)
	d.metrics.RecordDispatchLatency(ctx, action, d.clock.Now().Sub(start))
	logger.Info("dispatch complete",
		"result", string(result),
		"sent", outcome.sent,
		"fallback", outcome.fallback,
		"failed", outcome.failed,
	)
	return nil
}

// replyOriginal resolves the comment a reply refers to. skip=true means the
// reply produces no notification: the reference is absent, the original is
// gone, or the reply author is talking to themselves.
func (d *Dispatcher) replyOriginal(ctx context.Context, event *types.ActivityEvent) (*types.Comment, bool, error) {
	commentID := event.OriginalCommentID()
	if commentID == "" {
		return nil, true, nil
	}
	original, err := d.reviews.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, true, nil
		}
		return nil, false, err
	}
	if original.AuthorID == event.AuthorID {
		return nil, true, nil
	}
	return original, false, nil
}

// sendDirect resolves one internal recipient and posts the built message to
// their Slack identity. A resolution miss is not dropped silently: a
// fallback notice naming the internal id goes to the shared channel instead.
func (d *Dispatcher) sendDirect(ctx context.Context, logger types.Logger, userID string, build func(target string) *types.Message) types.DispatchResult {
	user, err := d.users.GetUser(ctx, userID)
	if err == nil {
		slackID, rerr := d.resolver.Resolve(ctx, user)
		if rerr == nil {
			return d.post(ctx, logger, build(slackID))
		}
		if !errors.Is(rerr, types.ErrNoSlackUser) {
			logger.Warn("recipient resolution failed", "user_id", userID, "error", rerr.Error())
		}
	} else if !errors.Is(err, types.ErrNotFound) {
		logger.Error("user fetch failed", "user_id", userID, "error", err.Error())
	}

	if r := d.post(ctx, logger, d.builder.LookupFallback(userID)); r == types.DispatchFailed {
		return types.DispatchFailed
	}
	logger.Info("sent fallback notice", "user_id", userID)
	return types.DispatchFallback
}

// post delivers one message, containing any transport failure to this single
// recipient's send.
func (d *Dispatcher) post(ctx context.Context, logger types.Logger, msg *types.Message) types.DispatchResult {
	if err := d.transport.PostMessage(ctx, msg); err != nil {
		logger.Error("message post failed", "target", msg.Target, "error", err.Error())
		return types.DispatchFailed
	}
	return types.DispatchSent
}

// userOrPlaceholder fetches the acting user, degrading to an id-only
// placeholder when the identity store cannot supply one. Message rendering
// must not fail because an author record is missing.
func (d *Dispatcher) userOrPlaceholder(ctx context.Context, id string) types.User {
	if id == "" {
		return types.User{ID: "unknown"}
	}
	user, err := d.users.GetUser(ctx, id)
	if err != nil {
		return types.User{ID: id}
	}
	return user
}

// commentRecipients computes who hears about a new comment: the full
// reviewer set minus the comment's author, plus the review author when
// distinct from the comment's author. Order follows the reviewer set.
func commentRecipients(review *types.ReviewSnapshot, commentAuthorID string) []string {
	var recipients []string
	seen := make(map[string]bool, len(review.ReviewerIDs)+1)
	for _, reviewerID := range review.ReviewerIDs {
		if reviewerID == commentAuthorID || seen[reviewerID] {
			continue
		}
		seen[reviewerID] = true
		recipients = append(recipients, reviewerID)
	}
	if review.AuthorID != commentAuthorID && !seen[review.AuthorID] {
		recipients = append(recipients, review.AuthorID)
	}
	return recipients
}

// notificationKey derives the dedup key for one logical notification.
// Review-level actions key on the review id; comment, reply and test-status
// events key on the activity id so distinct comments on one review do not
// contend.
func notificationKey(action types.Action, reviewID, activityID string) string {
	switch action {
	case types.ActionReviewRequested:
		return "review:" + reviewID
	case types.ActionNeedsReview:
		return "needs-review:" + reviewID
	case types.ActionNeedsRevision:
		return "needs-revision:" + reviewID
	case types.ActionApproved:
		return "approved:" + reviewID
	case types.ActionCommentAdded:
		return "comment:" + activityID
	case types.ActionCommentReply:
		return "reply:" + activityID
	case types.ActionTestStatus:
		return "test-status:" + activityID
	}
	return "activity:" + activityID
}

// dispatchOutcome aggregates per-recipient results into one reportable
// dispatch result.
type dispatchOutcome struct {
	sent     int
	fallback int
	failed   int
}

func (o *dispatchOutcome) add(r types.DispatchResult) {
	switch r {
	case types.DispatchSent:
		o.sent++
	case types.DispatchFallback:
		o.fallback++
	case types.DispatchFailed:
		o.failed++
	}
}

func (o *dispatchOutcome) result() types.DispatchResult {
	switch {
	case o.failed > 0:
		return types.DispatchFailed
	case o.fallback > 0:
		return types.DispatchFallback
	case o.sent > 0:
		return types.DispatchSent
	}
	return types.DispatchSkipped
}
