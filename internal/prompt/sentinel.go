package prompt

import (
	"regexp"
	"strings"
)

// EndCallSentinelV1 is the token the agent appends to hang up. Bump the version
// and keep accepting the old token if the wording ever changes.
const EndCallSentinelV1 = "[END_CALL]"

// EndCallSentinel is the token currently taught to the agent.
const EndCallSentinel = EndCallSentinelV1

// OpeningSentinel is sent as the message when the agent should speak first.
const OpeningSentinel = "__OPENING__"

// OpeningInstruction replaces the opening sentinel in the conversation.
const OpeningInstruction = "The call just connected. Speak first: greet the prospect and introduce yourself using the OPENING section."

// Matches the token with optional inner spaces and any case, e.g. "[ end_call ]".
var endCallPattern = regexp.MustCompile(`(?i)\[\s*END_CALL\s*\]`)

// Reply is an agent reply with control tokens removed.
type Reply struct {
	Text    string
	EndCall bool
}

// ParseReply strips the end-call sentinel from raw and reports whether it was present.
func ParseReply(raw string) Reply {
	if !endCallPattern.MatchString(raw) {
		return Reply{Text: strings.TrimSpace(raw)}
	}
	text := endCallPattern.ReplaceAllString(raw, "")
	return Reply{Text: strings.Join(strings.Fields(text), " "), EndCall: true}
}

// IsOpening reports whether message asks the agent to open the call.
func IsOpening(message string) bool {
	return strings.TrimSpace(message) == OpeningSentinel
}
