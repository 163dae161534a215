package tournament

import (
	"fmt"
	"sort"
)

type Hole struct {
	Number   int            `yaml:"hole" json:"hole"`
	Par      int            `yaml:"par" json:"par"`
	Handicap int            `yaml:"handicap" json:"handicap"`
	Yardage  map[string]int `yaml:"yardage" json:"yardage"`
}

type Course struct {
	Name  string `yaml:"name" json:"name"`
	Holes []Hole `yaml:"holes" json:"holes"`
}

func yards(black, yellow, silver int) map[string]int {
	return map[string]int{"black": black, "yellow": yellow, "silver": silver}
}

// DefaultCourse is the scorecard the Classic is played on.
func DefaultCourse() Course {
	return Course{
		Name: "The Classic",
		Holes: []Hole{
			{1, 5, 5, yards(548, 530, 513)},
			{2, 4, 9, yards(388, 360, 333)},
			{3, 3, 13, yards(174, 150, 132)},
			{4, 5, 15, yards(530, 524, 491)},
			{5, 4, 1, yards(463, 441, 419)},
			{6, 4, 7, yards(369, 345, 319)},
			{7, 3, 11, yards(196, 166, 165)},
			{8, 4, 17, yards(379, 345, 302)},
			{9, 4, 3, yards(435, 411, 385)},
			{10, 4, 18, yards(353, 324, 311)},
			{11, 5, 14, yards(506, 482, 450)},
			{12, 4, 16, yards(367, 341, 316)},
			{13, 3, 4, yards(185, 153, 147)},
			{14, 4, 12, yards(376, 353, 330)},
			{15, 4, 6, yards(385, 365, 332)},
			{16, 4, 2, yards(450, 411, 380)},
			{17, 3, 8, yards(227, 211, 182)},
			{18, 5, 10, yards(584, 560, 530)},
		},
	}
}

func (c Course) Validate() error {
	if len(c.Holes) != NumHoles {
		return fmt.Errorf("course %q has %d holes", c.Name, len(c.Holes))
	}
	seen := make(map[int]bool)
	for _, h := range c.Holes {
		if h.Number < 1 || h.Number > NumHoles {
			return fmt.Errorf("course %q: hole number %d out of range", c.Name, h.Number)
		}
		if h.Handicap < 1 || h.Handicap > NumHoles || seen[h.Handicap] {
			return fmt.Errorf("course %q: hole %d has bad handicap index %d", c.Name, h.Number, h.Handicap)
		}
		seen[h.Handicap] = true
	}
	return nil
}

// StrokeHoles returns the n hardest holes, hardest first. Strokes beyond
// eighteen are not given.
func StrokeHoles(c Course, n int) []Hole {
	if n <= 0 {
		return nil
	}
	holes := make([]Hole, len(c.Holes))
	copy(holes, c.Holes)
	sort.Slice(holes, func(i, j int) bool { return holes[i].Handicap < holes[j].Handicap })
	if n > len(holes) {
		n = len(holes)
	}
	return holes[:n]
}

type Matchup struct {
	MatchID  int        `json:"matchId"`
	Players  [2]*Player `json:"players"`
	PopsDiff int        `json:"popsDiff"`
	Underdog *Player    `json:"underdog,omitempty"`
	Front9   []Hole     `json:"front9Strokes"`
	Back9    []Hole     `json:"back9Strokes"`
	Score    [2]Result  `json:"score"`
}

// MatchupDetail describes the handicap strokes of a filled match. The
// player with more pops receives the difference on the hardest holes.
func MatchupDetail(doc *Document, rules Rules, c Course, matchIndex int) (*Matchup, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	m := doc.Matches[matchIndex]
	p0, p1 := doc.SlotPlayer(m, 0), doc.SlotPlayer(m, 1)
	if p0 == nil || p1 == nil {
		return nil, fmt.Errorf("match %d: both players must be selected", m.ID)
	}
	front, back := EffectivePoints(doc, rules, m)
	mu := &Matchup{
		MatchID: m.ID,
		Players: [2]*Player{p0, p1},
		Score:   [2]Result{front, back},
	}
	mu.PopsDiff = p0.Pops - p1.Pops
	mu.Underdog = p0
	if mu.PopsDiff < 0 {
		mu.PopsDiff = -mu.PopsDiff
		mu.Underdog = p1
	}
	if mu.PopsDiff == 0 {
		mu.Underdog = nil
		return mu, nil
	}
	for _, h := range StrokeHoles(c, mu.PopsDiff) {
		if h.Number <= 9 {
			mu.Front9 = append(mu.Front9, h)
		} else {
			mu.Back9 = append(mu.Back9, h)
		}
	}
	return mu, nil
}
