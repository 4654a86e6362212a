// Package slack implements the chat.postMessage transport and the
// users.lookupByEmail directory lookup against the Slack Web API.
package slack

// --- Block Kit payload types ---

// PostMessagePayload is the request body for chat.postMessage.
type PostMessagePayload struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`             // Fallback text for push notifications
	Blocks  []SlackBlock `json:"blocks,omitempty"` // Rich layout
}

// SlackBlock represents a single block in a Block Kit message.
type SlackBlock struct {
	Type     string       `json:"type"`               // "section", "header", "context"
	Text     *SlackText   `json:"text,omitempty"`     // Primary text element
	Elements []*SlackText `json:"elements,omitempty"` // Context elements
}

// SlackText is a text composition object for Block Kit.
type SlackText struct {
	Type string `json:"type"` // "plain_text", "mrkdwn"
	Text string `json:"text"` // Actual text content
}

// --- Web API response types ---

// apiResponse covers the envelope every Slack Web API method shares. A 200
// status with ok=false is a soft failure; the error field carries the reason.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// lookupResponse is the users.lookupByEmail response body.
type lookupResponse struct {
	apiResponse
	User *slackUser `json:"user,omitempty"`
}

type slackUser struct {
	ID string `json:"id"`
}
