package model

// Board is everything one ingestion run produces, handed to exporters.
type Board struct {
	ContestID   string
	Contest     *Contest
	Teams       Teams
	Submissions Submissions
}
