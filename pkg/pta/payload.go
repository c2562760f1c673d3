package pta

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Judge API resources, relative to the contest.
const (
	ResourceGroups          = "groups"
	ResourceRankings        = "xcpc-rankings"
	ResourceTeamSubmissions = "xcpc-rankings-team-submissions"
)

// FID is a remote identifier that the judge encodes either as a JSON string
// or as a number.
type FID string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode fid: %w", err)
		}
		*f = FID(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("decode fid %s: not a string or number", data)
		}
		*f = FID(data)
		return nil
	}
}

type groupsPayload struct {
	Groups []struct {
		FID  FID    `json:"fid"`
		Name string `json:"name"`
	} `json:"groups"`
}

type rankPayload struct {
	CompetitionBasicInfo struct {
		Name    string `json:"name"`
		StartAt string `json:"startAt"`
		EndAt   string `json:"endAt"`
	} `json:"competitionBasicInfo"`

	XcpcRankings struct {
		ProblemInfoByProblemSetProblemID map[string]problemInfo `json:"problemInfoByProblemSetProblemId"`
		Rankings                         []ranking              `json:"rankings"`
	} `json:"xcpcRankings"`
}

type problemInfo struct {
	Label      string `json:"label"`
	BalloonRgb string `json:"balloonRgb"`
}

type ranking struct {
	TeamFID  FID `json:"teamFid"`
	TeamInfo struct {
		TeamFID     FID      `json:"teamFid"`
		TeamName    string   `json:"teamName"`
		MemberNames []string `json:"memberNames"`
		SchoolName  string   `json:"schoolName"`
		Excluded    bool     `json:"excluded"`
		GirlMajor   bool     `json:"girlMajor"`
		GroupFIDs   []FID    `json:"groupFids"`
	} `json:"teamInfo"`
	ProblemSubmissionDetails map[string]problemDetail `json:"problemSubmissionDetailsByProblemSetProblemId"`
}

// teamID prefers the ranking-level fid and falls back to the one in teamInfo.
func (r *ranking) teamID() string {
	if r.TeamFID != "" {
		return string(r.TeamFID)
	}
	return string(r.TeamInfo.TeamFID)
}

type problemDetail struct {
	Status              detailStatus `json:"status"`
	ValidSubmitCount    int          `json:"validSubmitCount"`
	AcceptTime          int64        `json:"acceptTime"`
	SubmitCountSnapshot int          `json:"submitCountSnapshot"`
}

// AcceptedScore is the per-problem score the judge reports for a solved problem.
const AcceptedScore = 300

// detailStatus is the per-problem status of a ranking row, reported either as
// a verdict string or as a numeric score.
type detailStatus struct {
	verdict string
	score   float64
}

func (s *detailStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.verdict)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	score, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode problem status %s: %w", data, err)
	}
	s.score = score
	return nil
}

func (s detailStatus) accepted() bool {
	return s.verdict == verdictAccepted || s.score >= AcceptedScore
}

type submissionsPayload struct {
	Submissions []struct {
		SubmissionID        FID    `json:"submissionId"`
		ProblemSetProblemID FID    `json:"problemSetProblemId"`
		Status              string `json:"status"`
		SubmitAt            string `json:"submitAt"`
	} `json:"submissions"`
}
