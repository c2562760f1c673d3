package model

import "sort"

// Verdict is the normalized judge result of a submission.
type Verdict string

const (
	VerdictAccepted    Verdict = "ACCEPTED"
	VerdictWrongAnswer Verdict = "WRONG_ANSWER"
	VerdictUnknown     Verdict = "UNKNOWN"
)

// Submission is a single run on the scoreboard timeline.
type Submission struct {
	TeamID string `json:"team_id"`

	// ProblemID is the zero-based problem index, not the letter.
	ProblemID int `json:"problem_id"`

	Status Verdict `json:"status"`

	// Timestamp is in epoch seconds.
	Timestamp int64 `json:"timestamp"`

	SubmissionID string `json:"submission_id"`
}

// Submissions is an ordered run list.
type Submissions []Submission

// SortByTimestamp orders runs by timestamp, keeping arrival order for ties.
func (s Submissions) SortByTimestamp() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Timestamp < s[j].Timestamp
	})
}
