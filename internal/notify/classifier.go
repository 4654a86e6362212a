// Package notify contains the dispatch core: the event classifier, the
// message builder, and the dispatcher orchestrating lock, lookup, build and
// send for each review activity event.
package notify

import (
	"reviewnotify/internal/types"
)

// rawActionTable maps the host platform's raw activity verbs onto the closed
// Action vocabulary. Several host spellings collapse onto one Action: a
// comment on the review description is still a comment, and test runs report
// the same way with or without an authenticated agent.
var rawActionTable = map[string]types.Action{
	types.RawReviewRequested:    types.ActionReviewRequested,
	types.RawNeedsReview:        types.ActionNeedsReview,
	types.RawNeedsRevision:      types.ActionNeedsRevision,
	types.RawApproved:           types.ActionApproved,
	types.RawCommentAdded:       types.ActionCommentAdded,
	types.RawDescriptionComment: types.ActionCommentAdded,
	types.RawCommentReply:       types.ActionCommentReply,
	types.RawTestStatus:         types.ActionTestStatus,
	types.RawTestStatusUnauthed: types.ActionTestStatus,
}

// Classify decides which notification action (if any) an activity event
// produces. ActionUnknown means "ignore": no notification for this event.
//
// Suppression rules, checked before the action table:
//   - a nil event is ignored
//   - quiet=true suppresses everything
//   - a non-empty dataQuiet marker suppresses, with one exception: quiet
//     markers are channel-scoped, and the single-element mail-only marker
//     names a channel that is not this notifier, so it must NOT suppress
//
// Classify runs on every event and never fails: unrecognized or missing
// fields degrade to ActionUnknown.
func Classify(event *types.ActivityEvent, quiet bool, dataQuiet []string) types.Action {
	if event == nil {
		return types.ActionUnknown
	}
	if quiet {
		return types.ActionUnknown
	}
	if len(dataQuiet) > 0 && !isMailOnlyMarker(dataQuiet) {
		return types.ActionUnknown
	}

	if action, ok := rawActionTable[event.Action]; ok {
		return action
	}
	return types.ActionUnknown
}

// isMailOnlyMarker reports whether the data-quiet value is exactly the
// single-element mail-only marker.
func isMailOnlyMarker(dataQuiet []string) bool {
	return len(dataQuiet) == 1 && dataQuiet[0] == types.MailOnlyQuietMarker
}
