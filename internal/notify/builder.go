package notify

import (
	"fmt"
	"strings"

	"reviewnotify/internal/slack"
	"reviewnotify/internal/types"
)

// maxQuotedBodyLength caps quoted comment bodies in a message. Longer bodies
// are truncated with an ellipsis; the full text is one click away behind the
// review link.
const maxQuotedBodyLength = 600

// testStatusPresentation is the fixed icon/label/context triple rendered for
// each known CI outcome.
type testStatusPresentation struct {
	icon    string
	label   string
	context string
}

var testStatusTable = map[types.TestStatus]testStatusPresentation{
	types.TestStatusPass: {
		icon:    ":white_check_mark:",
		label:   "Tests passed",
		context: "All tests completed successfully.",
	},
	types.TestStatusFail: {
		icon:    ":x:",
		label:   "Tests failed",
		context: "One or more tests did not pass.",
	},
	types.TestStatusRunning: {
		icon:    ":hourglass_flipping_sand:",
		label:   "Tests running",
		context: "The test run has not finished yet.",
	},
	types.TestStatusUnknown: {
		icon:    ":grey_question:",
		label:   "Test status unknown",
		context: "The CI system reported an unrecognized status.",
	},
}

// presentationFor returns the triple for a status, falling back to the
// unknown triple for anything outside the vocabulary. Never an error.
func presentationFor(status types.TestStatus) testStatusPresentation {
	if p, ok := testStatusTable[status]; ok {
		return p
	}
	return testStatusTable[types.TestStatusUnknown]
}

// Builder constructs notification payloads. All methods are pure: same
// inputs, same message, no side effects. Every message shares a footer link
// back to the review.
type Builder struct {
	notifyChannel string
	hostname      string
	externalURL   string
	serverID      string
}

// NewBuilder creates a Builder. notifyChannel is the shared broadcast
// channel; hostname/externalURL/serverID feed review URL construction.
func NewBuilder(notifyChannel, hostname, externalURL, serverID string) *Builder {
	return &Builder{
		notifyChannel: notifyChannel,
		hostname:      hostname,
		externalURL:   externalURL,
		serverID:      serverID,
	}
}

// Channel returns the shared broadcast channel target.
func (b *Builder) Channel() string { return b.notifyChannel }

// ReviewURL derives the canonical web URL for a review. The external URL
// wins when configured; otherwise plain http against the hostname. A server
// id, when present, prefixes the reviews path.
func (b *Builder) ReviewURL(reviewID string) string {
	base := b.externalURL
	if base == "" {
		base = "http://" + b.hostname
	}
	base = strings.TrimSuffix(base, "/")

	path := "reviews/" + reviewID
	if b.serverID != "" {
		path = b.serverID + "/" + path
	}
	return base + "/" + path
}

// ReviewRequested builds the shared-channel broadcast for a newly created
// review.
func (b *Builder) ReviewRequested(review *types.ReviewSnapshot, author types.User) *types.Message {
	title := fmt.Sprintf("New Review #%s", review.ID)
	body := fmt.Sprintf("*%s* requested a review.", slack.EscapeText(author.DisplayName()))
	if review.Description != "" {
		body += "\n" + quote(review.Description)
	}

	msg := &types.Message{
		Target:      b.notifyChannel,
		SummaryText: fmt.Sprintf("%s by %s", title, author.DisplayName()),
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: body},
		},
	}
	if len(review.ReviewerIDs) > 0 {
		msg.Sections = append(msg.Sections, types.Section{
			Kind: types.SectionContext,
			Text: "Reviewers: " + slack.EscapeText(strings.Join(review.ReviewerIDs, ", ")),
		})
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// NeedsReviewDirect builds the direct message sent to one reviewer when
// further review is requested.
func (b *Builder) NeedsReviewDirect(review *types.ReviewSnapshot, actor types.User, target string) *types.Message {
	title := fmt.Sprintf("Review #%s Needs Review", review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: title,
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				"*%s* requested further review of review *#%s*.",
				slack.EscapeText(actor.DisplayName()), review.ID)},
		},
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// NeedsReviewAggregate builds the shared-channel broadcast used when a
// review needing further review has no assigned reviewers to message
// directly.
func (b *Builder) NeedsReviewAggregate(review *types.ReviewSnapshot, actor types.User) *types.Message {
	msg := b.NeedsReviewDirect(review, actor, b.notifyChannel)
	msg.Sections = append(msg.Sections, types.Section{
		Kind: types.SectionContext,
		Text: "No reviewers assigned yet.",
	})
	return msg
}

// NeedsRevision builds the direct message telling the review author that
// revisions were requested.
func (b *Builder) NeedsRevision(review *types.ReviewSnapshot, actor types.User, target string) *types.Message {
	title := fmt.Sprintf("Review #%s Needs Revision", review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: title,
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				"*%s* requested revisions to review *#%s*.",
				slack.EscapeText(actor.DisplayName()), review.ID)},
		},
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// Approved builds the direct message telling the review author their review
// was approved.
func (b *Builder) Approved(review *types.ReviewSnapshot, actor types.User, target string) *types.Message {
	title := fmt.Sprintf("Review #%s Approved", review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: fmt.Sprintf("%s approved review #%s", actor.DisplayName(), review.ID),
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				":white_check_mark: *%s* approved review *#%s*.",
				slack.EscapeText(actor.DisplayName()), review.ID)},
		},
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// CommentAdded builds the direct message sent to one interested party when a
// comment lands on a review.
func (b *Builder) CommentAdded(review *types.ReviewSnapshot, commenter types.User, body, target string) *types.Message {
	title := fmt.Sprintf("New Comment on Review #%s", review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: fmt.Sprintf("%s commented on review #%s", commenter.DisplayName(), review.ID),
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				"*%s* commented:\n%s",
				slack.EscapeText(commenter.DisplayName()), quote(body))},
		},
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// CommentReply builds the direct message sent to the original comment's
// author when someone replies.
func (b *Builder) CommentReply(review *types.ReviewSnapshot, replier types.User, body, target string) *types.Message {
	title := fmt.Sprintf("New Reply on Review #%s", review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: fmt.Sprintf("%s replied to your comment on review #%s", replier.DisplayName(), review.ID),
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				"*%s* replied to your comment:\n%s",
				slack.EscapeText(replier.DisplayName()), quote(body))},
		},
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// TestStatus builds the direct message telling the review author about a CI
// outcome. An unrecognized status renders as the unknown triple.
func (b *Builder) TestStatus(review *types.ReviewSnapshot, status types.TestStatus, testURL, target string) *types.Message {
	p := presentationFor(status)
	title := fmt.Sprintf("%s — Review #%s", p.label, review.ID)
	msg := &types.Message{
		Target:      target,
		SummaryText: fmt.Sprintf("%s for review #%s", p.label, review.ID),
		Sections: []types.Section{
			{Kind: types.SectionHeader, Text: title},
			{Kind: types.SectionBody, Text: fmt.Sprintf(
				"%s *%s* for review *#%s*.", p.icon, p.label, review.ID)},
			{Kind: types.SectionContext, Text: p.context},
		},
	}
	if testURL != "" {
		msg.Links = append(msg.Links, types.Link{Label: "View Test Results", URL: testURL})
	}
	b.appendFooter(msg, review.ID)
	return msg
}

// LookupFallback builds the shared-channel notice sent when a recipient has
// no resolvable Slack identity, so the miss is operator-visible instead of
// silently dropped.
func (b *Builder) LookupFallback(internalID string) *types.Message {
	text := ":warning: Failed to find Slack user for review user: " + slack.EscapeText(internalID)
	return &types.Message{
		Target:      b.notifyChannel,
		SummaryText: "Failed to find Slack user for review user: " + internalID,
		Sections: []types.Section{
			{Kind: types.SectionBody, Text: text},
		},
	}
}

// appendFooter adds the shared "View Review" footer link.
func (b *Builder) appendFooter(msg *types.Message, reviewID string) {
	msg.Links = append(msg.Links, types.Link{
		Label: "View Review",
		URL:   b.ReviewURL(reviewID),
	})
}

// quote renders body text as a mrkdwn block quote, truncated when oversized.
func quote(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxQuotedBodyLength {
		body = body[:maxQuotedBodyLength] + "…"
	}
	escaped := slack.EscapeText(body)
	lines := strings.Split(escaped, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}
