package tournament

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// NumHoles is the length of a round.
const NumHoles = 18

// TimestampLayout matches the output of JavaScript's Date.toISOString so
// documents written by browsers and by this server compare cleanly.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Team string

const Unassigned Team = ""

type Meta struct {
	LastUpdated string `json:"lastUpdated"`
}

type Player struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
	Pops int    `json:"pops"`
	Team Team   `json:"team"`
}

// MarshalJSON writes an unassigned team as null, the way the score
// console has always stored undrafted players. The id is informational;
// the players map key is authoritative when decoding.
func (p Player) MarshalJSON() ([]byte, error) {
	type playerJSON struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
		Rank int    `json:"rank"`
		Pops int    `json:"pops"`
		Team *Team  `json:"team"`
	}
	out := playerJSON{ID: p.ID, Name: p.Name, Rank: p.Rank, Pops: p.Pops}
	if p.Team != Unassigned {
		t := p.Team
		out.Team = &t
	}
	return json.Marshal(out)
}

type Match struct {
	ID        int       `json:"id"`
	PlayerIDs [2]string `json:"-"`
	Points    Points    `json:"points"`
}

func (m Match) MarshalJSON() ([]byte, error) {
	var slots [2]*string
	for i, id := range m.PlayerIDs {
		if id != "" {
			id := id
			slots[i] = &id
		}
	}
	return json.Marshal(struct {
		ID        int        `json:"id"`
		PlayerIDs [2]*string `json:"playerIds"`
		Points    Points     `json:"points"`
	}{m.ID, slots, m.Points})
}

func (m *Match) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int       `json:"id"`
		PlayerIDs []*string `json:"playerIds"`
		Points    Points    `json:"points"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.PlayerIDs) > 2 {
		return fmt.Errorf("match %d has %d player slots", raw.ID, len(raw.PlayerIDs))
	}
	m.ID = raw.ID
	m.Points = raw.Points
	m.PlayerIDs = [2]string{}
	for i, id := range raw.PlayerIDs {
		if id != nil {
			m.PlayerIDs[i] = *id
		}
	}
	return nil
}

// Filled reports whether both slots hold a player.
func (m *Match) Filled() bool {
	return m.PlayerIDs[0] != "" && m.PlayerIDs[1] != ""
}

// Points holds the nine results from slot 0's perspective. Holes is nil for
// a nine-only match; once a hole card exists Front9 and Back9 are derived
// from it and are never set directly.
type Points struct {
	Front9 Result    `json:"front9"`
	Back9  Result    `json:"back9"`
	Holes  *HoleCard `json:"holes,omitempty"`
}

// HoleTracked reports whether the match is scored hole by hole.
func (p Points) HoleTracked() bool {
	return p.Holes != nil
}

// HoleCard is indexed by hole number minus one.
type HoleCard [NumHoles]Result

func (c *HoleCard) Get(hole int) Result {
	return c[hole-1]
}

func (c HoleCard) MarshalJSON() ([]byte, error) {
	m := make(map[string]Result, NumHoles)
	for i, r := range c {
		m[strconv.Itoa(i+1)] = r
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts the keyed form {"1": 1, "2": null, ...} and the
// older positional array form.
func (c *HoleCard) UnmarshalJSON(data []byte) error {
	*c = HoleCard{}

	var keyed map[string]Result
	if err := json.Unmarshal(data, &keyed); err == nil {
		for k, r := range keyed {
			hole, err := strconv.Atoi(k)
			if err != nil || hole < 1 || hole > NumHoles {
				return fmt.Errorf("invalid hole %q", k)
			}
			c[hole-1] = r
		}
		return nil
	}

	var positional []Result
	if err := json.Unmarshal(data, &positional); err != nil {
		return fmt.Errorf("holes must be an object or an array: %w", err)
	}
	if len(positional) > NumHoles {
		return fmt.Errorf("holes array has %d entries", len(positional))
	}
	copy(c[:], positional)
	return nil
}

type Document struct {
	Meta    Meta               `json:"meta"`
	Players map[string]*Player `json:"players"`
	Matches []*Match           `json:"matches"`
}

// Clone returns a deep copy. Commands work on clones so that a failed
// command never leaves a half-applied document behind.
func (d *Document) Clone() *Document {
	out := &Document{
		Meta:    d.Meta,
		Players: make(map[string]*Player, len(d.Players)),
		Matches: make([]*Match, len(d.Matches)),
	}
	for id, p := range d.Players {
		cp := *p
		out.Players[id] = &cp
	}
	for i, m := range d.Matches {
		cm := *m
		if m.Points.Holes != nil {
			card := *m.Points.Holes
			cm.Points.Holes = &card
		}
		out.Matches[i] = &cm
	}
	return out
}

// SlotPlayer returns the player in the given slot, or nil when the slot is
// empty or references an unknown player.
func (d *Document) SlotPlayer(m *Match, slot int) *Player {
	id := m.PlayerIDs[slot]
	if id == "" {
		return nil
	}
	return d.Players[id]
}

// SortedPlayers returns players ordered by draft rank, then ID.
func (d *Document) SortedPlayers(keep func(*Player) bool) []*Player {
	out := make([]*Player, 0, len(d.Players))
	for _, p := range d.Players {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LastUpdated parses meta.lastUpdated. The zero time is returned for an
// empty timestamp.
func (d *Document) LastUpdated() (time.Time, error) {
	if d.Meta.LastUpdated == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, d.Meta.LastUpdated)
}

// Stamp sets meta.lastUpdated to now. The timestamp never moves backwards:
// if the clock is behind the current stamp the result is one millisecond
// past it.
func Stamp(d *Document, now time.Time) string {
	now = now.UTC().Truncate(time.Millisecond)
	if prev, err := d.LastUpdated(); err == nil && !now.After(prev) {
		now = prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	d.Meta.LastUpdated = now.Format(TimestampLayout)
	return d.Meta.LastUpdated
}

// NotOlder reports whether next may replace current during a refresh.
// Anything replaces a document without a timestamp; a document without a
// timestamp never replaces one that has it.
func NotOlder(next, current *Document) bool {
	if current == nil || current.Meta.LastUpdated == "" {
		return true
	}
	if next == nil || next.Meta.LastUpdated == "" {
		return false
	}
	nt, err := next.LastUpdated()
	if err != nil {
		return false
	}
	ct, err := current.LastUpdated()
	if err != nil {
		return true
	}
	return !nt.Before(ct)
}
