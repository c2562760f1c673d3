package pta

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

const verdictAccepted = string(model.VerdictAccepted)

// balloonForeground is the text color drawn on judge-provided balloon colors.
const balloonForeground = "#000"

// ErrTooManyProblems is returned for a problem set that cannot be labelled
// with single letters.
var ErrTooManyProblems = errors.New("too many problems")

// ProblemIndex maps a remote problem-set problem id to its zero-based index
// on the board.
type ProblemIndex map[string]int

// ParseGroups decodes the groups payload into a group id to name mapping.
func ParseGroups(raw []byte) (map[string]string, error) {
	var payload groupsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}

	groups := make(map[string]string, len(payload.Groups))
	for _, g := range payload.Groups {
		groups[string(g.FID)] = g.Name
	}
	return groups, nil
}

// Rank is a decoded xcpc-rankings snapshot. The contest, the teams and the
// synthesized runs are all derived from the same decoded value.
type Rank struct {
	payload rankPayload
}

// DecodeRank decodes a rank snapshot.
func DecodeRank(raw []byte) (*Rank, error) {
	rank := &Rank{}
	if err := json.Unmarshal(raw, &rank.payload); err != nil {
		return nil, fmt.Errorf("decode rank snapshot: %w", err)
	}
	return rank, nil
}

// ParseContest derives contest timing and the problem set from a rank
// snapshot. Problems are ordered by their remote label (ties by remote id) and
// labelled A, B, C... by position; more than model.MaxProblems problems fail
// with ErrTooManyProblems.
func ParseContest(rank *Rank) (*model.Contest, ProblemIndex, error) {
	payload := &rank.payload
	info := payload.CompetitionBasicInfo
	start, err := parseTimestamp(info.StartAt)
	if err != nil {
		return nil, nil, fmt.Errorf("contest start: %w", err)
	}
	end, err := parseTimestamp(info.EndAt)
	if err != nil {
		return nil, nil, fmt.Errorf("contest end: %w", err)
	}

	type entry struct {
		id   string
		info problemInfo
	}
	entries := make([]entry, 0, len(payload.XcpcRankings.ProblemInfoByProblemSetProblemID))
	for id, p := range payload.XcpcRankings.ProblemInfoByProblemSetProblemID {
		entries = append(entries, entry{id: id, info: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if len(a.info.Label) != len(b.info.Label) {
			return len(a.info.Label) < len(b.info.Label)
		}
		if a.info.Label != b.info.Label {
			return a.info.Label < b.info.Label
		}
		return a.id < b.id
	})

	if len(entries) > model.MaxProblems {
		return nil, nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyProblems, len(entries), model.MaxProblems)
	}

	contest := (&model.Contest{
		ContestName:     info.Name,
		StartTime:       start,
		EndTime:         end,
		ProblemQuantity: len(entries),
		Group:           map[string]string{},
	}).FillProblemID().FillBalloonColor()

	problems := make(ProblemIndex, len(entries))
	for i, e := range entries {
		if e.info.BalloonRgb != "" {
			contest.BalloonColor[i] = model.Color{Color: balloonForeground, BackgroundColor: e.info.BalloonRgb}
		}
		problems[e.id] = i
	}

	return contest, problems, nil
}

// ParseTeams derives the teams from the ranking rows of a rank snapshot.
// Excluded teams are dropped. The returned ids follow ranking order.
func ParseTeams(rank *Rank) (model.Teams, []string, error) {
	rankings := rank.payload.XcpcRankings.Rankings
	teams := make(model.Teams, len(rankings))
	order := make([]string, 0, len(rankings))
	for i := range rankings {
		r := &rankings[i]
		if r.TeamInfo.Excluded {
			continue
		}
		id := r.teamID()
		if id == "" {
			return nil, nil, fmt.Errorf("ranking row %d has no team id", i)
		}

		members := r.TeamInfo.MemberNames
		if members == nil {
			members = []string{}
		}
		groups := make([]string, len(r.TeamInfo.GroupFIDs))
		for j, g := range r.TeamInfo.GroupFIDs {
			groups[j] = string(g)
		}

		if _, dup := teams[id]; !dup {
			order = append(order, id)
		}
		teams.Add(&model.Team{
			TeamID:       id,
			Name:         r.TeamInfo.TeamName,
			Organization: r.TeamInfo.SchoolName,
			Members:      members,
			Group:        groups,
			Girl:         r.TeamInfo.GirlMajor,
		})
	}

	return teams, order, nil
}

// ParseVerdict maps a judge status string to a verdict. Matching is exact and
// case-sensitive; everything that is not accepted or wrong answer is unknown.
func ParseVerdict(status string) model.Verdict {
	switch status {
	case string(model.VerdictAccepted):
		return model.VerdictAccepted
	case string(model.VerdictWrongAnswer):
		return model.VerdictWrongAnswer
	default:
		return model.VerdictUnknown
	}
}

// ParseTeamSubmissions decodes one team's submission list. Every record
// yields exactly one submission; a record referencing a problem outside the
// contest fails the whole payload with *UnknownProblemError.
func ParseTeamSubmissions(raw []byte, teamID string, problems ProblemIndex) (model.Submissions, error) {
	var payload submissionsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode submissions of team %s: %w", teamID, err)
	}

	runs := make(model.Submissions, 0, len(payload.Submissions))
	for _, s := range payload.Submissions {
		pid := string(s.ProblemSetProblemID)
		index, ok := problems[pid]
		if !ok {
			return nil, &UnknownProblemError{TeamID: teamID, ProblemSetProblemID: pid}
		}
		ts, err := parseTimestamp(s.SubmitAt)
		if err != nil {
			return nil, fmt.Errorf("submission %s of team %s: %w", s.SubmissionID, teamID, err)
		}
		runs = append(runs, model.Submission{
			TeamID:       teamID,
			ProblemID:    index,
			Status:       ParseVerdict(s.Status),
			Timestamp:    ts,
			SubmissionID: string(s.SubmissionID),
		})
	}
	return runs, nil
}

// parseTimestamp converts an ISO-8601 timestamp to epoch seconds.
func parseTimestamp(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.Unix(), nil
}
