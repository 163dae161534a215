package tournament

import "fmt"

type Nine int

const (
	Front Nine = iota
	Back
)

// Holes returns the first and last hole of the nine.
func (n Nine) Holes() (int, int) {
	if n == Back {
		return 10, 18
	}
	return 1, 9
}

func (n Nine) String() string {
	if n == Back {
		return "back9"
	}
	return "front9"
}

// DeriveNine tallies holes start..end of the card. Halved holes count for
// neither side. A range with no recorded hole is Unset; otherwise the side
// that won more holes takes the nine and equal tallies halve it. The range
// is clamped to holes 1..18.
func DeriveNine(card *HoleCard, start, end int) Result {
	if card == nil {
		return Unset
	}
	start, end = max(start, 1), min(end, NumHoles)
	var slot0, slot1 int
	recorded := false
	for hole := start; hole <= end; hole++ {
		switch card.Get(hole) {
		case Win:
			slot0++
		case Loss:
			slot1++
		case Halved:
		default:
			continue
		}
		recorded = true
	}
	switch {
	case !recorded:
		return Unset
	case slot0 > slot1:
		return Win
	case slot1 > slot0:
		return Loss
	default:
		return Halved
	}
}

// rederive is the single place the cached nines are recomputed.
func rederive(m *Match) {
	fs, fe := Front.Holes()
	bs, be := Back.Holes()
	m.Points.Front9 = DeriveNine(m.Points.Holes, fs, fe)
	m.Points.Back9 = DeriveNine(m.Points.Holes, bs, be)
}

// RecordHole stores a hole result for the match at matchIndex and
// re-derives both nines. Passing Unset clears the hole. The first hole
// recorded turns a nine-only match into a hole-tracked one.
func RecordHole(doc *Document, rules Rules, matchIndex, hole int, result Result) (*Document, error) {
	if hole < 1 || hole > NumHoles {
		return nil, fmt.Errorf("%w: %d", ErrHoleRange, hole)
	}
	if result > Win {
		return nil, ErrInvalidResult
	}
	out, m, err := scorable(doc, rules, matchIndex)
	if err != nil {
		return nil, err
	}
	if m.Points.Holes == nil {
		m.Points.Holes = &HoleCard{}
	}
	m.Points.Holes[hole-1] = result
	rederive(m)
	return out, nil
}

// ToggleHole follows the score console convention: entering the value a
// hole already holds clears it.
func ToggleHole(doc *Document, rules Rules, matchIndex, hole int, result Result) (*Document, error) {
	if matchIndex >= 0 && matchIndex < len(doc.Matches) && hole >= 1 && hole <= NumHoles {
		if card := doc.Matches[matchIndex].Points.Holes; card != nil && card.Get(hole) == result {
			result = Unset
		}
	}
	return RecordHole(doc, rules, matchIndex, hole, result)
}

// SetNine records a nine result directly on a match that is not scored
// hole by hole.
func SetNine(doc *Document, rules Rules, matchIndex int, nine Nine, result Result) (*Document, error) {
	if result > Win {
		return nil, ErrInvalidResult
	}
	out, m, err := scorable(doc, rules, matchIndex)
	if err != nil {
		return nil, err
	}
	if m.Points.HoleTracked() {
		return nil, fmt.Errorf("match %d: %w", m.ID, ErrHoleTracked)
	}
	if nine == Back {
		m.Points.Back9 = result
	} else {
		m.Points.Front9 = result
	}
	return out, nil
}

// ClearScores drops every result of one match, including its hole card.
func ClearScores(doc *Document, matchIndex int) (*Document, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	out := doc.Clone()
	out.Matches[matchIndex].Points = Points{}
	return out, nil
}

// ResetAllScores marks every match as not started.
func ResetAllScores(doc *Document) *Document {
	out := doc.Clone()
	for _, m := range out.Matches {
		m.Points = Points{}
	}
	return out
}

// MarkAllInProgress opens the front nine of every valid nine-only match
// that has no front nine yet, recording it as 0. Hole-tracked matches are
// left alone since their nines are derived.
func MarkAllInProgress(doc *Document, rules Rules) *Document {
	out := doc.Clone()
	for _, m := range out.Matches {
		if !ValidMatchup(out, rules, m) || m.Points.HoleTracked() || m.Points.Front9.IsSet() {
			continue
		}
		m.Points.Front9 = Loss
	}
	return out
}

func scorable(doc *Document, rules Rules, matchIndex int) (*Document, *Match, error) {
	if matchIndex < 0 || matchIndex >= len(doc.Matches) {
		return nil, nil, fmt.Errorf("%w: %d", ErrMatchRange, matchIndex)
	}
	if !ValidMatchup(doc, rules, doc.Matches[matchIndex]) {
		return nil, nil, fmt.Errorf("match %d: %w", doc.Matches[matchIndex].ID, ErrInvalidMatchup)
	}
	out := doc.Clone()
	return out, out.Matches[matchIndex], nil
}

// ValidMatchup reports whether both slots hold players from opposing
// playing teams. Scores of an invalid matchup are never writable and are
// read as unset.
func ValidMatchup(doc *Document, rules Rules, m *Match) bool {
	p0, p1 := doc.SlotPlayer(m, 0), doc.SlotPlayer(m, 1)
	if p0 == nil || p1 == nil {
		return false
	}
	return rules.Playing(p0.Team) && rules.Playing(p1.Team) && p0.Team != p1.Team
}

// EffectivePoints returns the nines that count for the match.
func EffectivePoints(doc *Document, rules Rules, m *Match) (front, back Result) {
	if !ValidMatchup(doc, rules, m) {
		return Unset, Unset
	}
	return m.Points.Front9, m.Points.Back9
}

type Totals map[Team]float64

// TeamTotals recomputes every team's points from the matches. Each set
// nine of a valid matchup is worth exactly one point split between the two
// teams.
func TeamTotals(doc *Document, rules Rules) Totals {
	totals := Totals{rules.TeamA: 0, rules.TeamB: 0}
	for _, m := range doc.Matches {
		front, back := EffectivePoints(doc, rules, m)
		if !front.IsSet() && !back.IsSet() {
			continue
		}
		t0 := doc.SlotPlayer(m, 0).Team
		t1 := doc.SlotPlayer(m, 1).Team
		for _, r := range []Result{front, back} {
			v, ok := r.Value()
			if !ok {
				continue
			}
			totals[t0] += v
			totals[t1] += 1 - v
		}
	}
	return totals
}

// Leader returns the team ahead on points, or Unassigned when level.
func (t Totals) Leader(rules Rules) Team {
	a, b := t[rules.TeamA], t[rules.TeamB]
	switch {
	case a > b:
		return rules.TeamA
	case b > a:
		return rules.TeamB
	}
	return Unassigned
}

type Status string

const (
	NotStarted Status = "not_started"
	InProgress Status = "in_progress"
	Complete   Status = "complete"
)

func MatchStatus(doc *Document, rules Rules, m *Match) Status {
	front, back := EffectivePoints(doc, rules, m)
	switch {
	case front.IsSet() && back.IsSet():
		return Complete
	case front.IsSet() || back.IsSet():
		return InProgress
	}
	return NotStarted
}

type Progress struct {
	Complete   int `json:"complete"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
	Percent    int `json:"percent"`
}

func ScoringProgress(doc *Document, rules Rules) Progress {
	var p Progress
	for _, m := range doc.Matches {
		switch MatchStatus(doc, rules, m) {
		case Complete:
			p.Complete++
		case InProgress:
			p.InProgress++
		default:
			p.NotStarted++
		}
	}
	if n := len(doc.Matches); n > 0 {
		p.Percent = (p.Complete*100 + n/2) / n
	}
	return p
}
