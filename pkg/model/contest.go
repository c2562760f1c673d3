// Package model holds the canonical scoreboard records produced by the spider:
// contest metadata, teams and submissions.
package model

// Color is a foreground/background pair used to draw a problem balloon.
type Color struct {
	// Color is the foreground (text) color.
	Color string `json:"color"`

	// BackgroundColor is the balloon fill.
	BackgroundColor string `json:"background_color"`
}

// Image references a logo by URL or inline base64 data.
type Image struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Type   string `json:"type,omitempty"`
}

// DefaultBalloonColors is the palette used when the judge does not provide one.
var DefaultBalloonColors = []Color{
	{BackgroundColor: "rgba(189, 14, 14, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(255, 144, 228, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(255, 255, 255, 0.7)", Color: "#000"},
	{BackgroundColor: "rgba(38, 185, 60, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(239, 217, 9, 0.7)", Color: "#000"},
	{BackgroundColor: "rgba(243, 88, 20, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(12, 76, 138, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(156, 155, 155, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(4, 154, 115, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(159, 19, 236, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(42, 197, 202, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(142, 56, 54, 0.7)", Color: "#fff"},
	{BackgroundColor: "rgba(0, 0, 0, 0.7)", Color: "#fff"},
}

// DefaultBalloonColor returns the palette entry for problem index i.
// The palette wraps around for contests with more problems than colors.
func DefaultBalloonColor(i int) Color {
	return DefaultBalloonColors[i%len(DefaultBalloonColors)]
}

// Contest is the contest-level metadata of a scoreboard.
// Invariant: len(ProblemID) == len(BalloonColor) == ProblemQuantity.
type Contest struct {
	ContestName string `json:"contest_name"`

	// StartTime and EndTime are epoch seconds.
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`

	// FrozenTime is the length of the freeze window in seconds.
	FrozenTime int64 `json:"frozen_time"`

	// Penalty per rejected attempt in seconds.
	Penalty int64 `json:"penalty"`

	ProblemQuantity int      `json:"problem_quantity"`
	ProblemID       []string `json:"problem_id"`

	// Group maps group identifier to display name.
	Group map[string]string `json:"group"`

	Organization      string         `json:"organization"`
	StatusTimeDisplay map[string]int `json:"status_time_display,omitempty"`
	Medal             map[string]any `json:"medal,omitempty"`
	BalloonColor      []Color        `json:"balloon_color"`
	Logo              *Image         `json:"logo,omitempty"`
}

// MaxProblems is the largest problem set that single letters can label.
const MaxProblems = 26

// ProblemLabel returns the letter for a zero-based problem index.
// i must be in [0, MaxProblems).
func ProblemLabel(i int) string {
	return string(rune('A' + i))
}

// FillProblemID assigns labels A, B, C... for ProblemQuantity problems.
func (c *Contest) FillProblemID() *Contest {
	c.ProblemID = make([]string, c.ProblemQuantity)
	for i := range c.ProblemID {
		c.ProblemID[i] = ProblemLabel(i)
	}
	return c
}

// FillBalloonColor assigns the default palette for ProblemQuantity problems.
func (c *Contest) FillBalloonColor() *Contest {
	c.BalloonColor = make([]Color, c.ProblemQuantity)
	for i := range c.BalloonColor {
		c.BalloonColor[i] = DefaultBalloonColor(i)
	}
	return c
}
