package domain

import "time"

// Label identifies one of the four answer options of a question.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"
)

// Labels lists the option labels in display order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD}

// Question models an MCQ question with exactly one correct label.
// Immutable once fetched into a session.
type Question struct {
	ID           string `json:"id"`
	Prompt       string `json:"prompt"`
	OptionA      string `json:"optionA"`
	OptionB      string `json:"optionB"`
	OptionC      string `json:"optionC"`
	OptionD      string `json:"optionD"`
	CorrectLabel Label  `json:"correctLabel"`
	Category     string `json:"category,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
}

// Option returns the text for a given label, or "" for an unknown label.
func (q Question) Option(label Label) string {
	switch label {
	case LabelA:
		return q.OptionA
	case LabelB:
		return q.OptionB
	case LabelC:
		return q.OptionC
	case LabelD:
		return q.OptionD
	}
	return ""
}

// AnswerRecord maps question IDs to the single selected label.
// A missing entry means the question is unanswered.
type AnswerRecord map[string]Label

// ViolationEvent is one detected integrity-deterrent signal.
type ViolationEvent struct {
	Tag        string    `json:"tag"`
	OccurredAt time.Time `json:"occurredAt"`
}

// QuestionResult is the per-question correctness breakdown persisted
// with an attempt.
type QuestionResult struct {
	QuestionID   string `json:"questionId"`
	Prompt       string `json:"prompt"`
	CorrectLabel Label  `json:"correctLabel"`
	GivenLabel   Label  `json:"givenLabel,omitempty"`
	Correct      bool   `json:"correct"`
}

// AttemptRecord is the write-once summary of a completed quiz session.
// At most one may ever exist per user; the attempt store enforces this.
type AttemptRecord struct {
	ID                string           `json:"id"`
	UserID            string           `json:"userId"`
	Score             int              `json:"score"`
	TotalQuestions    int              `json:"totalQuestions"`
	TimeTakenSeconds  int              `json:"timeTakenSeconds"`
	Breakdown         []QuestionResult `json:"breakdown"`
	DeviceFingerprint string           `json:"deviceFingerprint"`
	Violations        []ViolationEvent `json:"violations"`
	Forced            bool             `json:"forced"`
	SubmittedAt       time.Time        `json:"submittedAt"`
}

// DeviceInfo carries the client-reported characteristics that feed the
// attempt fingerprint.
type DeviceInfo struct {
	UserAgent     string `json:"userAgent"`
	Language      string `json:"language"`
	Platform      string `json:"platform"`
	CookieEnabled bool   `json:"cookieEnabled"`
	ScreenWidth   int    `json:"screenWidth"`
	ScreenHeight  int    `json:"screenHeight"`
	Timezone      string `json:"timezone"`
	CanvasHash    string `json:"canvas"`
}

// BlockReason distinguishes why a session cannot start.
type BlockReason string

const (
	BlockAlreadyAttempted BlockReason = "already_attempted"
	BlockOutsideWindow    BlockReason = "outside_window"
	BlockNotEligible      BlockReason = "not_eligible"
	BlockLoadFailed       BlockReason = "load_failed" // retryable
)

// Retryable reports whether the user may retry loading after this block.
func (r BlockReason) Retryable() bool {
	return r == BlockLoadFailed
}
