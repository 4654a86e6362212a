package notify

import (
	"strings"
	"testing"

	"reviewnotify/internal/types"
)

func testBuilder() *Builder {
	return NewBuilder("#swarm-reviews", "swarm.internal", "", "")
}

func review42() *types.ReviewSnapshot {
	return &types.ReviewSnapshot{
		ID:          "42",
		AuthorID:    "alice",
		Description: "Refactor the widget pipeline",
		ReviewerIDs: []string{"bob", "carol"},
	}
}

func sectionText(msg *types.Message, kind types.SectionKind) string {
	var parts []string
	for _, s := range msg.Sections {
		if s.Kind == kind {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestReviewURL(t *testing.T) {
	tests := []struct {
		name        string
		hostname    string
		externalURL string
		serverID    string
		want        string
	}{
		{
			name:     "hostname fallback",
			hostname: "swarm.internal",
			want:     "http://swarm.internal/reviews/42",
		},
		{
			name:        "external url wins over hostname",
			hostname:    "swarm.internal",
			externalURL: "https://swarm.example.com",
			want:        "https://swarm.example.com/reviews/42",
		},
		{
			name:        "trailing slash trimmed",
			externalURL: "https://swarm.example.com/",
			want:        "https://swarm.example.com/reviews/42",
		},
		{
			name:        "server id prefixes path",
			externalURL: "https://swarm.example.com",
			serverID:    "main",
			want:        "https://swarm.example.com/main/reviews/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("#swarm-reviews", tt.hostname, tt.externalURL, tt.serverID)
			if got := b.ReviewURL("42"); got != tt.want {
				t.Errorf("ReviewURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReviewRequestedMessage(t *testing.T) {
	b := testBuilder()
	author := types.User{ID: "alice", FullName: "Alice Liddell"}

	msg := b.ReviewRequested(review42(), author)

	if msg.Target != "#swarm-reviews" {
		t.Errorf("broadcast target should be the shared channel, got %q", msg.Target)
	}
	if got := sectionText(msg, types.SectionHeader); got != "New Review #42" {
		t.Errorf("wrong header: %q", got)
	}
	if body := sectionText(msg, types.SectionBody); !strings.Contains(body, "Alice Liddell") {
		t.Errorf("body should name the author, got %q", body)
	}
	ctx := sectionText(msg, types.SectionContext)
	if !strings.Contains(ctx, "bob") || !strings.Contains(ctx, "carol") {
		t.Errorf("context should list reviewers, got %q", ctx)
	}
	assertFooter(t, msg, "http://swarm.internal/reviews/42")
}

func TestReviewRequestedWithoutReviewers(t *testing.T) {
	b := testBuilder()
	review := &types.ReviewSnapshot{ID: "7", AuthorID: "alice"}

	msg := b.ReviewRequested(review, types.User{ID: "alice"})
	if got := sectionText(msg, types.SectionContext); got != "" {
		t.Errorf("no reviewer context expected, got %q", got)
	}
}

func TestEveryVariantCarriesFooterLink(t *testing.T) {
	b := testBuilder()
	review := review42()
	actor := types.User{ID: "bob"}

	variants := map[string]*types.Message{
		"review_requested":       b.ReviewRequested(review, actor),
		"needs_review_direct":    b.NeedsReviewDirect(review, actor, "U1"),
		"needs_review_aggregate": b.NeedsReviewAggregate(review, actor),
		"needs_revision":         b.NeedsRevision(review, actor, "U1"),
		"approved":               b.Approved(review, actor, "U1"),
		"comment_added":          b.CommentAdded(review, actor, "looks good", "U1"),
		"comment_reply":          b.CommentReply(review, actor, "thanks", "U1"),
		"test_status":            b.TestStatus(review, types.TestStatusPass, "", "U1"),
	}

	for name, msg := range variants {
		assertFooter(t, msg, "http://swarm.internal/reviews/42")
		if t.Failed() {
			t.Fatalf("variant %s missing footer", name)
		}
	}
}

func TestTestStatusTable(t *testing.T) {
	b := testBuilder()
	review := &types.ReviewSnapshot{ID: "7", AuthorID: "dave"}

	tests := []struct {
		status    types.TestStatus
		wantLabel string
	}{
		{types.TestStatusPass, "Tests passed"},
		{types.TestStatusFail, "Tests failed"},
		{types.TestStatusRunning, "Tests running"},
		{types.TestStatusUnknown, "Test status unknown"},
		{types.TestStatus("exploded"), "Test status unknown"}, // fallback, never an error
		{types.TestStatus(""), "Test status unknown"},
	}

	for _, tt := range tests {
		msg := b.TestStatus(review, tt.status, "", "U1")
		if !strings.Contains(msg.SummaryText, tt.wantLabel) {
			t.Errorf("status %q: summary %q should contain %q", tt.status, msg.SummaryText, tt.wantLabel)
		}
		if got := sectionText(msg, types.SectionContext); got == "" {
			t.Errorf("status %q: missing context sentence", tt.status)
		}
	}
}

func TestTestStatusLinksResults(t *testing.T) {
	b := testBuilder()
	msg := b.TestStatus(&types.ReviewSnapshot{ID: "7"}, types.TestStatusFail, "http://ci/123", "U1")

	var found bool
	for _, link := range msg.Links {
		if link.URL == "http://ci/123" && link.Label == "View Test Results" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected test results link, got %+v", msg.Links)
	}
}

func TestLookupFallbackNoticeNamesUser(t *testing.T) {
	b := testBuilder()
	msg := b.LookupFallback("dave")

	if msg.Target != "#swarm-reviews" {
		t.Errorf("fallback must go to the shared channel, got %q", msg.Target)
	}
	want := "Failed to find Slack user for review user: dave"
	if !strings.Contains(sectionText(msg, types.SectionBody), want) {
		t.Errorf("fallback body should contain %q, got %q", want, sectionText(msg, types.SectionBody))
	}
}

func TestCommentBodyIsQuotedAndEscaped(t *testing.T) {
	b := testBuilder()
	msg := b.CommentAdded(review42(), types.User{ID: "bob"}, "line one\n<b> & done", "U1")

	body := sectionText(msg, types.SectionBody)
	if !strings.Contains(body, "> line one") || !strings.Contains(body, "> &lt;b&gt; &amp; done") {
		t.Errorf("body should quote and escape the comment, got %q", body)
	}
}

func TestLongCommentBodyTruncated(t *testing.T) {
	b := testBuilder()
	long := strings.Repeat("x", maxQuotedBodyLength+200)
	msg := b.CommentAdded(review42(), types.User{ID: "bob"}, long, "U1")

	body := sectionText(msg, types.SectionBody)
	if !strings.Contains(body, "…") {
		t.Error("oversized body should be truncated with an ellipsis")
	}
	if strings.Contains(body, long) {
		t.Error("full oversized body must not appear in the message")
	}
}

func assertFooter(t *testing.T, msg *types.Message, wantURL string) {
	t.Helper()
	for _, link := range msg.Links {
		if link.Label == "View Review" && link.URL == wantURL {
			return
		}
	}
	t.Errorf("missing View Review footer link to %s in %+v", wantURL, msg.Links)
}
