package slack

import (
	"fmt"
	"strings"

	"reviewnotify/internal/types"
)

// BuildPayload maps the transport-neutral Message onto Slack Block Kit.
// Header sections become header blocks, body sections become mrkdwn
// sections, and context sections plus links collapse into context footers.
func BuildPayload(msg *types.Message) PostMessagePayload {
	payload := PostMessagePayload{
		Channel: msg.Target,
		Text:    msg.SummaryText,
	}

	for _, section := range msg.Sections {
		switch section.Kind {
		case types.SectionHeader:
			payload.Blocks = append(payload.Blocks, SlackBlock{
				Type: "header",
				Text: &SlackText{Type: "plain_text", Text: section.Text},
			})
		case types.SectionContext:
			payload.Blocks = append(payload.Blocks, SlackBlock{
				Type: "context",
				Elements: []*SlackText{
					{Type: "mrkdwn", Text: section.Text},
				},
			})
		default:
			payload.Blocks = append(payload.Blocks, SlackBlock{
				Type: "section",
				Text: &SlackText{Type: "mrkdwn", Text: section.Text},
			})
		}
	}

	if len(msg.Links) > 0 {
		parts := make([]string, 0, len(msg.Links))
		for _, link := range msg.Links {
			parts = append(parts, FormatLink(link.URL, link.Label))
		}
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "context",
			Elements: []*SlackText{
				{Type: "mrkdwn", Text: strings.Join(parts, " | ")},
			},
		})
	}

	return payload
}

// EscapeText escapes the three characters Slack's mrkdwn treats as control
// characters. Apply to user-supplied content before composing mrkdwn.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// FormatLink renders a Slack mrkdwn hyperlink.
func FormatLink(url, label string) string {
	return fmt.Sprintf("<%s|%s>", url, EscapeText(label))
}
