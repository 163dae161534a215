package tournament

import "fmt"

// Roster returns the members of team ordered by draft rank.
func Roster(doc *Document, team Team) []*Player {
	return doc.SortedPlayers(func(p *Player) bool { return p.Team == team })
}

// AssignTeam drafts a player onto a team. Playing teams are capped at
// rules.Capacity; the captain group is not. Assigning Unassigned is
// RemoveFromTeam.
func AssignTeam(doc *Document, rules Rules, playerID string, team Team) (*Document, error) {
	p, ok := doc.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
	}
	if !rules.Known(team) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
	if team == Unassigned {
		return RemoveFromTeam(doc, playerID)
	}
	if p.Team == team {
		return doc.Clone(), nil
	}
	if rules.Playing(team) && len(Roster(doc, team)) >= rules.Capacity {
		return nil, fmt.Errorf("%w: %s has %d players", ErrTeamFull, rules.Name(team), rules.Capacity)
	}
	out := doc.Clone()
	out.Players[playerID].Team = team
	return out, nil
}

// RemoveFromTeam returns a player to the undrafted pool and empties every
// match slot that referenced them.
func RemoveFromTeam(doc *Document, playerID string) (*Document, error) {
	if _, ok := doc.Players[playerID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
	}
	out := doc.Clone()
	out.Players[playerID].Team = Unassigned
	for _, m := range out.Matches {
		for slot, id := range m.PlayerIDs {
			if id == playerID {
				m.PlayerIDs[slot] = ""
				m.Points = Points{}
			}
		}
	}
	return out, nil
}

// AssignSlot places a player in a match slot, or empties the slot when
// playerID is empty. A player that is not a captain is drafted onto
// expectedTeam at the same time. Changing the occupant of a slot discards
// the match's recorded results.
func AssignSlot(doc *Document, rules Rules, matchIndex, slot int, playerID string, expectedTeam Team) (*Document, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	if slot < 0 || slot > 1 {
		return nil, fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	current := doc.Matches[matchIndex].PlayerIDs[slot]
	if playerID == current {
		return doc.Clone(), nil
	}

	out := doc
	if playerID != "" {
		p, ok := doc.Players[playerID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
		}
		if mi, _, found := findSlot(doc, playerID); found {
			return nil, fmt.Errorf("%w: %s is in match %d", ErrPlayerBusy, p.Name, doc.Matches[mi].ID)
		}
		if p.Team != rules.Captain {
			if !rules.Playing(expectedTeam) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, expectedTeam)
			}
			drafted, err := AssignTeam(doc, rules, playerID, expectedTeam)
			if err != nil {
				return nil, err
			}
			out = drafted
		}
	}
	if out == doc {
		out = doc.Clone()
	}
	m := out.Matches[matchIndex]
	m.PlayerIDs[slot] = playerID
	m.Points = Points{}
	return out, nil
}

// SwapSlots exchanges the two players of a match. Results are recorded
// from slot 0's perspective, so they are discarded.
func SwapSlots(doc *Document, matchIndex int) (*Document, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	out := doc.Clone()
	m := out.Matches[matchIndex]
	m.PlayerIDs[0], m.PlayerIDs[1] = m.PlayerIDs[1], m.PlayerIDs[0]
	m.Points = Points{}
	return out, nil
}

// AvailablePlayers lists who may be offered for a slot reserved for team:
// members of team and, while team has room, undrafted players. Players
// sitting in any other slot are left out; the slot's own occupant is
// always included.
func AvailablePlayers(doc *Document, rules Rules, matchIndex, slot int, team Team) ([]*Player, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	if slot < 0 || slot > 1 {
		return nil, fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	occupant := doc.Matches[matchIndex].PlayerIDs[slot]
	room := len(Roster(doc, team)) < rules.Capacity
	return doc.SortedPlayers(func(p *Player) bool {
		if p.ID == occupant {
			return true
		}
		if p.Team != team && !(room && p.Team == Unassigned) {
			return false
		}
		_, _, placed := findSlot(doc, p.ID)
		return !placed
	}), nil
}

// CaptainInMatch returns the first match holding a non-playing captain.
func CaptainInMatch(doc *Document, rules Rules) (*Match, bool) {
	for _, m := range doc.Matches {
		for _, id := range m.PlayerIDs {
			if p, ok := doc.Players[id]; ok && p.Team == rules.Captain {
				return m, true
			}
		}
	}
	return nil, false
}

// Foursomes groups matches in pairs: group i holds matches 2i and 2i+1.
func Foursomes(doc *Document) [][]*Match {
	var out [][]*Match
	for i := 0; i < len(doc.Matches); i += 2 {
		end := i + 2
		if end > len(doc.Matches) {
			end = len(doc.Matches)
		}
		out = append(out, doc.Matches[i:end])
	}
	return out
}

func findSlot(doc *Document, playerID string) (int, int, bool) {
	for i, m := range doc.Matches {
		for slot, id := range m.PlayerIDs {
			if id == playerID {
				return i, slot, true
			}
		}
	}
	return 0, 0, false
}
