package pta

import (
	"fmt"
	"sort"

	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

// SynthesizeSubmissions reconstructs a run list from the per-problem
// summaries of a rank snapshot, without any per-team requests.
//
// For each non-excluded team and problem:
//   - accepted: validSubmitCount-1 wrong answers and one accepted run at
//     StartTime + acceptTime minutes
//   - not accepted: validSubmitCount wrong answers at EndTime
//   - submitCountSnapshot-validSubmitCount unknown runs at EndTime (frozen or pending)
//
// The result reproduces the final standings but not the real timeline.
func SynthesizeSubmissions(rank *Rank, contest *model.Contest, problems ProblemIndex) (model.Submissions, error) {
	rankings := rank.payload.XcpcRankings.Rankings

	var runs model.Submissions
	for i := range rankings {
		r := &rankings[i]
		if r.TeamInfo.Excluded {
			continue
		}
		teamID := r.teamID()

		// map order is random; walk problems by board index instead
		pids := make([]string, 0, len(r.ProblemSubmissionDetails))
		for pid := range r.ProblemSubmissionDetails {
			if _, ok := problems[pid]; !ok {
				return nil, &UnknownProblemError{TeamID: teamID, ProblemSetProblemID: pid}
			}
			pids = append(pids, pid)
		}
		sort.Slice(pids, func(a, b int) bool { return problems[pids[a]] < problems[pids[b]] })

		for _, pid := range pids {
			runs = append(runs, synthesizeProblem(teamID, problems[pid], r.ProblemSubmissionDetails[pid], contest)...)
		}
	}

	runs.SortByTimestamp()
	return runs, nil
}

func synthesizeProblem(teamID string, index int, d problemDetail, contest *model.Contest) model.Submissions {
	label := model.ProblemLabel(index)
	var runs model.Submissions
	add := func(status model.Verdict, ts int64) {
		runs = append(runs, model.Submission{
			TeamID:       teamID,
			ProblemID:    index,
			Status:       status,
			Timestamp:    ts,
			SubmissionID: fmt.Sprintf("fake-%s-%s-%d", teamID, label, len(runs)),
		})
	}

	if d.Status.accepted() {
		acceptedAt := contest.StartTime + d.AcceptTime*60
		for n := 0; n < d.ValidSubmitCount-1; n++ {
			add(model.VerdictWrongAnswer, acceptedAt)
		}
		add(model.VerdictAccepted, acceptedAt)
	} else {
		for n := 0; n < d.ValidSubmitCount; n++ {
			add(model.VerdictWrongAnswer, contest.EndTime)
		}
	}

	for n := d.ValidSubmitCount; n < d.SubmitCountSnapshot; n++ {
		add(model.VerdictUnknown, contest.EndTime)
	}
	return runs
}
