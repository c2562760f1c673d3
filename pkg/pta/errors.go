package pta

import "fmt"

// UnknownProblemError reports a submission whose problem is not part of the
// contest's problem set. It means the rank snapshot and the submission stream
// disagree, so the run must not continue.
type UnknownProblemError struct {
	TeamID              string
	ProblemSetProblemID string
}

func (e *UnknownProblemError) Error() string {
	return fmt.Sprintf("team %s: unknown problem %q", e.TeamID, e.ProblemSetProblemID)
}
