package tournament

type DraftStatus string

const (
	DraftWaiting  DraftStatus = "waiting"
	DraftLive     DraftStatus = "live"
	DraftComplete DraftStatus = "complete"
)

type Pick struct {
	Number int     `json:"pick"`
	Team   Team    `json:"team"`
	Player *Player `json:"player"`
}

type TeamBoard struct {
	Team    Team      `json:"team"`
	Name    string    `json:"name"`
	Picks   []Pick    `json:"picks"`
	Members []*Player `json:"members"`
}

type DraftBoard struct {
	Status    DraftStatus `json:"status"`
	Drafted   int         `json:"drafted"`
	Draftable int         `json:"draftable"`
	Teams     []TeamBoard `json:"teams"`
	Captains  []*Player   `json:"captains"`
	Pool      []*Player   `json:"pool"`
}

// Board lays out the draft: each team's members fill its picks in rank
// order, and undrafted players make up the pool.
func Board(doc *Document, rules Rules) DraftBoard {
	board := DraftBoard{
		Captains: Roster(doc, rules.Captain),
		Pool:     Roster(doc, Unassigned),
	}
	for _, team := range []Team{rules.TeamA, rules.TeamB} {
		members := Roster(doc, team)
		tb := TeamBoard{Team: team, Name: rules.Name(team), Members: members}
		n := 0
		for i, owner := range rules.DraftOrder {
			if owner != team {
				continue
			}
			pick := Pick{Number: i + 1, Team: team}
			if n < len(members) {
				pick.Player = members[n]
			}
			n++
			tb.Picks = append(tb.Picks, pick)
		}
		board.Teams = append(board.Teams, tb)
		board.Drafted += len(members)
	}
	board.Draftable = len(doc.Players) - len(board.Captains)

	switch {
	case board.Drafted == 0:
		board.Status = DraftWaiting
	case board.Drafted < board.Draftable:
		board.Status = DraftLive
	default:
		board.Status = DraftComplete
	}
	return board
}
