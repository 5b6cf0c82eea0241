package queue

import "strings"

// Decision is the three-way classification of a review reply.
type Decision string

const (
	// DecisionReject discards the candidate.
	DecisionReject Decision = "reject"
	// DecisionApprove publishes the candidate with its original text.
	DecisionApprove Decision = "approve"
	// DecisionEdit publishes the candidate with the reply text instead.
	DecisionEdit Decision = "edit"
)

var (
	rejectReplies  = map[string]bool{"/reject": true, "reject": true, "no": true}
	approveReplies = map[string]bool{"/approve": true, "approve": true, "yes": true}
)

// ClassifyReply maps raw reply text to a decision. Matching is
// case-insensitive and ignores surrounding whitespace. Anything that is not
// an explicit reject or approve keyword counts as an edited approval, with
// the reply text replacing the candidate text for publishing; an empty reply
// approves the original text.
func ClassifyReply(text string) (Decision, string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case rejectReplies[lower]:
		return DecisionReject, ""
	case approveReplies[lower], trimmed == "":
		return DecisionApprove, ""
	}

	return DecisionEdit, trimmed
}
