package domain

import "fmt"

// MutationProposal is the reasoning service's answer to a mutation prompt.
type MutationProposal struct {
	ChangesMade []string
	Reasoning   string
	NewStrategy Strategy
}

// ParseMutationProposal requires a non-empty "new_strategy" object. The other
// fields are optional. Rejections wrap ErrBadCollaboratorReply.
func ParseMutationProposal(content string) (MutationProposal, error) {
	fields := decodeObject([]byte(content))
	if fields == nil {
		return MutationProposal{}, fmt.Errorf("%w: mutation reply is not a JSON object", ErrBadCollaboratorReply)
	}
	raw, ok := fields["new_strategy"]
	if !ok {
		return MutationProposal{}, fmt.Errorf("%w: mutation reply has no new_strategy", ErrBadCollaboratorReply)
	}
	if obj := decodeObject(raw); len(obj) == 0 {
		return MutationProposal{}, fmt.Errorf("%w: new_strategy must be a non-empty object", ErrBadCollaboratorReply)
	}
	s, err := DecodeStrategy(raw)
	if err != nil {
		return MutationProposal{}, fmt.Errorf("%w: %v", ErrBadCollaboratorReply, err)
	}
	return MutationProposal{
		ChangesMade: lenientList(fields["changes_made"]),
		Reasoning:   lenientString(fields["reasoning"]),
		NewStrategy: s,
	}, nil
}

// CoachingAdvice is the reply to a refine request.
type CoachingAdvice struct {
	ImprovedPrompt   string
	AgentFeedback    string
	NextPitchSummary string
}

// ParseCoachingAdvice reads a coaching reply. A reply that is not JSON is kept
// as feedback, cut to 300 characters.
func ParseCoachingAdvice(content string) CoachingAdvice {
	fields := decodeObject([]byte(content))
	if fields == nil {
		r := []rune(content)
		if len(r) > 300 {
			r = r[:300]
		}
		return CoachingAdvice{AgentFeedback: string(r)}
	}
	return CoachingAdvice{
		ImprovedPrompt:   lenientString(fields["improvedPrompt"]),
		AgentFeedback:    lenientString(fields["agentFeedback"]),
		NextPitchSummary: lenientString(fields["nextPitchSummary"]),
	}
}
