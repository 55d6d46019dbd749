package models

// Citation points back at the context hit an answer relied on.
type Citation struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// AnswerState tracks how far an answer progressed through the review pipeline.
type AnswerState string

const (
	StateNoContext   AnswerState = "no_context"
	StateAnswered    AnswerState = "answered"
	StateNeedsReview AnswerState = "needs_review"
	StateEscalated   AnswerState = "escalated"
)

// AnswerResult is the per-request outcome of grounded answer generation.
type AnswerResult struct {
	Answer           string      `json:"answer"`
	Confidence       float64     `json:"confidence"`
	Citations        []Citation  `json:"citations"`
	NeedsHumanReview bool        `json:"needs_human_review"`
	FollowupQuestion *string     `json:"followup_question,omitempty"`
	ReviewComment    string      `json:"review_comment,omitempty"`
	State            AnswerState `json:"state"`
}

// ReviewResult is what the external review workflow may return. Nil fields were
// absent from the response and leave the base result untouched.
type ReviewResult struct {
	ApprovedAnswer   *string    `json:"approved_answer,omitempty"`
	NeedsHumanReview *bool      `json:"needs_human_review,omitempty"`
	ReviewComment    *string    `json:"review_comment,omitempty"`
	Citations        []Citation `json:"citations,omitempty"`
}

// IsEmpty reports whether the review produced nothing usable.
func (r ReviewResult) IsEmpty() bool {
	return r.ApprovedAnswer == nil && r.NeedsHumanReview == nil && r.ReviewComment == nil && len(r.Citations) == 0
}
