package tournament

import "fmt"

// Rules are the deployment constants of a tournament.
type Rules struct {
	TeamA   Team `yaml:"team_a"`
	TeamB   Team `yaml:"team_b"`
	Captain Team `yaml:"captain"`

	// Capacity is the number of playing members a team may hold. Captains
	// do not count against it.
	Capacity int `yaml:"capacity"`
	Matches  int `yaml:"matches"`

	// DraftOrder lists the team holding each pick, first pick first.
	DraftOrder []Team `yaml:"draft_order"`

	Names map[Team]string `yaml:"names"`
}

func DefaultRules() Rules {
	return Rules{
		TeamA:    "brock",
		TeamB:    "jared",
		Captain:  "coach",
		Capacity: 6,
		Matches:  6,
		DraftOrder: []Team{
			"brock", "jared", "jared", "brock", "jared",
			"jared", "brock", "brock", "brock", "jared",
		},
		Names: map[Team]string{"brock": "Brock", "jared": "Jared"},
	}
}

func (r Rules) Validate() error {
	if r.TeamA == Unassigned || r.TeamB == Unassigned || r.TeamA == r.TeamB {
		return fmt.Errorf("two distinct playing teams are required, got %q and %q", r.TeamA, r.TeamB)
	}
	if r.Captain == Unassigned || r.Captain == r.TeamA || r.Captain == r.TeamB {
		return fmt.Errorf("captain key %q must differ from the playing teams", r.Captain)
	}
	if r.Capacity < 1 {
		return fmt.Errorf("team capacity must be positive, got %d", r.Capacity)
	}
	if r.Matches < 1 || r.Matches%2 != 0 {
		return fmt.Errorf("match count must be a positive even number, got %d", r.Matches)
	}
	for _, t := range r.DraftOrder {
		if !r.Playing(t) {
			return fmt.Errorf("draft order names unknown team %q", t)
		}
	}
	return nil
}

// Playing reports whether t is one of the two match-play teams.
func (r Rules) Playing(t Team) bool {
	return t == r.TeamA || t == r.TeamB
}

// Known reports whether t may appear on a player.
func (r Rules) Known(t Team) bool {
	return t == Unassigned || t == r.Captain || r.Playing(t)
}

// Opponent returns the other playing team.
func (r Rules) Opponent(t Team) Team {
	if t == r.TeamA {
		return r.TeamB
	}
	return r.TeamA
}

func (r Rules) Name(t Team) string {
	if n, ok := r.Names[t]; ok && n != "" {
		return n
	}
	return string(t)
}
