package domain

import "time"

// ResponseKind tags the side-effect variants an action can produce.
type ResponseKind string

const (
	ResponseText     ResponseKind = "text"
	ResponseMedia    ResponseKind = "media"
	ResponseReaction ResponseKind = "reaction"
	ResponsePin      ResponseKind = "pin"
	ResponseUnpin    ResponseKind = "unpin"
)

// Response is one side-effect produced by an action execution. Delay is the
// cumulative explicit delay the handler requested before this response; the
// delivery queue turns it into a logical delivery timestamp.
type Response struct {
	Kind     ResponseKind
	TenantID string

	Text    string
	ReplyTo string

	MediaKind string
	MediaPath string

	MessageID string
	Emoji     string

	Delay time.Duration
}
