package model

// Team is one scoreboard participant.
type Team struct {
	TeamID       string   `json:"team_id"`
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	Members      []string `json:"members"`
	Group        []string `json:"group"`
	Girl         bool     `json:"girl"`
}

// Teams indexes teams by identifier.
type Teams map[string]*Team

// Add stores a team under its identifier.
func (t Teams) Add(team *Team) {
	t[team.TeamID] = team
}
