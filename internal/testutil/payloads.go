package testutil

import (
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Problem is one entry of a rank snapshot's problem set.
type Problem struct {
	ID      string
	Label   string
	Balloon string
}

// Detail is a team's per-problem summary in a rank snapshot.
type Detail struct {
	// Status is either a verdict string or a numeric score.
	Status              any
	ValidSubmitCount    int
	AcceptTime          int
	SubmitCountSnapshot int
}

// RankTeam is one ranking row.
type RankTeam struct {
	FID      string
	Name     string
	School   string
	Members  []string
	Excluded bool
	Girl     bool
	Groups   []string
	Details  map[string]Detail
}

// Run is one record of a team submission payload.
type Run struct {
	ID        string
	ProblemID string
	Status    string
	SubmitAt  time.Time
}

// GroupsJSON builds a groups payload, ordered by group id.
func GroupsJSON(groups map[string]string) string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, map[string]any{"fid": id, "name": groups[id]})
	}
	return mustMarshal(map[string]any{"groups": entries})
}

// RankJSON builds an xcpc-rankings payload.
func RankJSON(start, end time.Time, problems []Problem, teams []RankTeam) string {
	problemInfo := make(map[string]any, len(problems))
	for _, p := range problems {
		problemInfo[p.ID] = map[string]any{"label": p.Label, "balloonRgb": p.Balloon}
	}

	rankings := make([]map[string]any, 0, len(teams))
	for _, t := range teams {
		details := make(map[string]any, len(t.Details))
		for pid, d := range t.Details {
			details[pid] = map[string]any{
				"status":              d.Status,
				"validSubmitCount":    d.ValidSubmitCount,
				"acceptTime":          d.AcceptTime,
				"submitCountSnapshot": d.SubmitCountSnapshot,
			}
		}
		groups := t.Groups
		if groups == nil {
			groups = []string{}
		}
		rankings = append(rankings, map[string]any{
			"teamFid": t.FID,
			"teamInfo": map[string]any{
				"teamFid":     t.FID,
				"teamName":    t.Name,
				"schoolName":  t.School,
				"memberNames": t.Members,
				"excluded":    t.Excluded,
				"girlMajor":   t.Girl,
				"groupFids":   groups,
			},
			"problemSubmissionDetailsByProblemSetProblemId": details,
		})
	}

	return mustMarshal(map[string]any{
		"competitionBasicInfo": map[string]any{
			"startAt": start.UTC().Format(time.RFC3339),
			"endAt":   end.UTC().Format(time.RFC3339),
		},
		"xcpcRankings": map[string]any{
			"problemInfoByProblemSetProblemId": problemInfo,
			"rankings":                         rankings,
		},
	})
}

// SubmissionsJSON builds a team submission payload.
func SubmissionsJSON(runs ...Run) string {
	entries := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, map[string]any{
			"submissionId":        r.ID,
			"problemSetProblemId": r.ProblemID,
			"status":              r.Status,
			"submitAt":            r.SubmitAt.UTC().Format(time.RFC3339),
		})
	}
	return mustMarshal(map[string]any{"submissions": entries})
}

func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
