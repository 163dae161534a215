package tournament

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDoc builds a twelve player field with P1..P5 on brock, P6..P10 on
// jared, P11 undrafted and P12 as a captain. Match 0 is P1 vs P6.
func testDoc(t *testing.T) *Document {
	t.Helper()
	doc := &Document{
		Meta:    Meta{LastUpdated: "2026-01-01T10:00:00.000Z"},
		Players: map[string]*Player{},
	}
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("p%d", i)
		team := Unassigned
		switch {
		case i <= 5:
			team = "brock"
		case i <= 10:
			team = "jared"
		case i == 12:
			team = "coach"
		}
		doc.Players[id] = &Player{ID: id, Name: fmt.Sprintf("Player %d", i), Rank: i, Pops: i % 4, Team: team}
	}
	for i := 0; i < 6; i++ {
		doc.Matches = append(doc.Matches, &Match{ID: i + 1})
	}
	doc.Matches[0].PlayerIDs = [2]string{"p1", "p6"}
	require.NoError(t, Validate(doc, DefaultRules()))
	return doc
}

func cardOf(results ...Result) *HoleCard {
	var c HoleCard
	copy(c[:], results)
	return &c
}

func TestDeriveNine(t *testing.T) {
	tests := []struct {
		name string
		card *HoleCard
		want Result
	}{
		{"nil card", nil, Unset},
		{"empty", cardOf(), Unset},
		{"single win", cardOf(Win), Win},
		{"single loss", cardOf(Unset, Loss), Loss},
		{"all halved", cardOf(Halved, Halved, Halved, Halved, Halved, Halved, Halved, Halved, Halved), Halved},
		{"one halved only", cardOf(Unset, Unset, Halved), Halved},
		{"four each with a half", cardOf(Win, Win, Loss, Halved, Win, Loss, Loss, Win, Loss), Halved},
		{"slot zero ahead", cardOf(Win, Win, Loss), Win},
		{"slot one ahead", cardOf(Loss, Halved, Loss, Win), Loss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveNine(tt.card, 1, 9))
		})
	}
}

func TestDeriveNine_IgnoresOtherNine(t *testing.T) {
	var card HoleCard
	card[9] = Win // hole 10
	assert.Equal(t, Unset, DeriveNine(&card, 1, 9))
	assert.Equal(t, Win, DeriveNine(&card, 10, 18))
}

func TestDeriveNine_ClampsRange(t *testing.T) {
	card := cardOf(Win)
	card[17] = Loss // hole 18
	assert.Equal(t, Win, DeriveNine(card, 0, 9))
	assert.Equal(t, Loss, DeriveNine(card, 10, 19))
	assert.Equal(t, Halved, DeriveNine(card, -5, 40))
	assert.Equal(t, Unset, DeriveNine(card, 12, 3))
}

func TestDeriveNine_UnsetIffNothingRecorded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		var card HoleCard
		recorded := false
		for h := 0; h < 9; h++ {
			if rng.Intn(3) == 0 {
				card[h] = Result(1 + rng.Intn(3))
				recorded = true
			}
		}
		got := DeriveNine(&card, 1, 9)
		assert.Equal(t, !recorded, got == Unset, "card %v", card)
	}
}

func TestRecordHole_FrontNineExample(t *testing.T) {
	doc := testDoc(t)
	holes := []Result{Win, Win, Loss, Halved, Win, Loss, Loss, Win, Loss}

	var err error
	for i, r := range holes {
		doc, err = RecordHole(doc, DefaultRules(), 0, i+1, r)
		require.NoError(t, err)
	}

	pts := doc.Matches[0].Points
	require.True(t, pts.HoleTracked())
	assert.Equal(t, Halved, pts.Front9)
	assert.Equal(t, Unset, pts.Back9)
}

func TestRecordHole_RederivesBothNines(t *testing.T) {
	rules := DefaultRules()
	doc := testDoc(t)

	doc, err := RecordHole(doc, rules, 0, 12, Loss)
	require.NoError(t, err)
	assert.Equal(t, Unset, doc.Matches[0].Points.Front9)
	assert.Equal(t, Loss, doc.Matches[0].Points.Back9)

	doc, err = RecordHole(doc, rules, 0, 3, Win)
	require.NoError(t, err)
	assert.Equal(t, Win, doc.Matches[0].Points.Front9)
	assert.Equal(t, Loss, doc.Matches[0].Points.Back9)

	doc, err = RecordHole(doc, rules, 0, 12, Unset)
	require.NoError(t, err)
	assert.Equal(t, Win, doc.Matches[0].Points.Front9)
	assert.Equal(t, Unset, doc.Matches[0].Points.Back9)
}

func TestRecordHole_Idempotent(t *testing.T) {
	rules := DefaultRules()
	once, err := RecordHole(testDoc(t), rules, 0, 5, Win)
	require.NoError(t, err)
	twice, err := RecordHole(once, rules, 0, 5, Win)
	require.NoError(t, err)

	assert.Equal(t, once.Matches[0].Points, twice.Matches[0].Points)
}

func TestRecordHole_DoesNotMutateInput(t *testing.T) {
	doc := testDoc(t)
	_, err := RecordHole(doc, DefaultRules(), 0, 1, Win)
	require.NoError(t, err)
	assert.Nil(t, doc.Matches[0].Points.Holes)
	assert.Equal(t, Unset, doc.Matches[0].Points.Front9)
}

func TestRecordHole_Rejections(t *testing.T) {
	rules := DefaultRules()
	doc := testDoc(t)

	_, err := RecordHole(doc, rules, 0, 0, Win)
	assert.ErrorIs(t, err, ErrHoleRange)
	_, err = RecordHole(doc, rules, 0, 19, Win)
	assert.ErrorIs(t, err, ErrHoleRange)
	_, err = RecordHole(doc, rules, 6, 1, Win)
	assert.ErrorIs(t, err, ErrMatchRange)
	_, err = RecordHole(doc, rules, 1, 1, Win)
	assert.ErrorIs(t, err, ErrInvalidMatchup)

	doc.Matches[1].PlayerIDs = [2]string{"p2", "p3"}
	_, err = RecordHole(doc, rules, 1, 1, Win)
	assert.ErrorIs(t, err, ErrInvalidMatchup)
}

func TestToggleHole(t *testing.T) {
	rules := DefaultRules()
	doc, err := ToggleHole(testDoc(t), rules, 0, 4, Win)
	require.NoError(t, err)
	assert.Equal(t, Win, doc.Matches[0].Points.Holes.Get(4))

	doc, err = ToggleHole(doc, rules, 0, 4, Win)
	require.NoError(t, err)
	assert.Equal(t, Unset, doc.Matches[0].Points.Holes.Get(4))
	assert.Equal(t, Unset, doc.Matches[0].Points.Front9)
}

func TestSetNine(t *testing.T) {
	rules := DefaultRules()
	doc, err := SetNine(testDoc(t), rules, 0, Back, Halved)
	require.NoError(t, err)
	assert.Equal(t, Halved, doc.Matches[0].Points.Back9)
	assert.False(t, doc.Matches[0].Points.HoleTracked())

	doc, err = RecordHole(doc, rules, 0, 1, Win)
	require.NoError(t, err)
	// The first hole takes over both nines.
	assert.Equal(t, Unset, doc.Matches[0].Points.Back9)

	_, err = SetNine(doc, rules, 0, Front, Loss)
	assert.ErrorIs(t, err, ErrHoleTracked)
}

func TestTeamTotals_ZeroSum(t *testing.T) {
	rules := DefaultRules()
	values := []Result{Loss, Halved, Win}
	for _, front := range values {
		for _, back := range values {
			doc := testDoc(t)
			doc.Matches[0].Points = Points{Front9: front, Back9: back}
			totals := TeamTotals(doc, rules)
			assert.InDelta(t, 2.0, totals["brock"]+totals["jared"], 1e-9, "front=%v back=%v", front, back)

			fv, _ := front.Value()
			bv, _ := back.Value()
			assert.InDelta(t, fv+bv, totals["brock"], 1e-9)
		}
	}
}

func TestTeamTotals_SkipsIncompleteAndInvalid(t *testing.T) {
	rules := DefaultRules()
	doc := testDoc(t)
	doc.Matches[0].Points = Points{Front9: Win}
	// One empty slot.
	doc.Matches[1].PlayerIDs = [2]string{"p2", ""}
	doc.Matches[1].Points = Points{Front9: Win, Back9: Win}
	// Same team.
	doc.Matches[2].PlayerIDs = [2]string{"p3", "p4"}
	doc.Matches[2].Points = Points{Front9: Win, Back9: Win}
	// Captain.
	doc.Matches[3].PlayerIDs = [2]string{"p12", "p7"}
	doc.Matches[3].Points = Points{Front9: Win, Back9: Win}
	// Slot one on brock.
	doc.Matches[4].PlayerIDs = [2]string{"p8", "p5"}
	doc.Matches[4].Points = Points{Front9: Loss, Back9: Halved}

	totals := TeamTotals(doc, rules)
	assert.InDelta(t, 2.5, totals["brock"], 1e-9)
	assert.InDelta(t, 0.5, totals["jared"], 1e-9)
	assert.Equal(t, Team("brock"), totals.Leader(rules))
}

func TestScoringProgress(t *testing.T) {
	rules := DefaultRules()
	doc := testDoc(t)
	doc.Matches[0].Points = Points{Front9: Win, Back9: Loss}
	doc.Matches[1].PlayerIDs = [2]string{"p2", "p7"}
	doc.Matches[1].Points = Points{Back9: Halved}

	p := ScoringProgress(doc, rules)
	assert.Equal(t, Progress{Complete: 1, InProgress: 1, NotStarted: 4, Percent: 17}, p)
	assert.Equal(t, Complete, MatchStatus(doc, rules, doc.Matches[0]))
	assert.Equal(t, InProgress, MatchStatus(doc, rules, doc.Matches[1]))
}

func TestClearAndReset(t *testing.T) {
	rules := DefaultRules()
	doc, err := RecordHole(testDoc(t), rules, 0, 1, Win)
	require.NoError(t, err)

	cleared, err := ClearScores(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, Points{}, cleared.Matches[0].Points)
	assert.NotNil(t, doc.Matches[0].Points.Holes)

	reset := ResetAllScores(doc)
	assert.Equal(t, Points{}, reset.Matches[0].Points)
}

func TestMarkAllInProgress(t *testing.T) {
	rules := DefaultRules()
	doc := testDoc(t)
	doc.Matches[1].PlayerIDs = [2]string{"p2", "p7"}
	doc.Matches[1].Points.Front9 = Halved
	doc.Matches[2].PlayerIDs = [2]string{"p3", "p8"}
	doc.Matches[2].Points.Holes = cardOf(Unset, Unset, Unset, Unset, Unset, Unset, Unset, Unset, Unset, Win)
	rederive(doc.Matches[2])
	doc.Matches[3].PlayerIDs = [2]string{"p4", "p5"}

	out := MarkAllInProgress(doc, rules)
	assert.Equal(t, Loss, out.Matches[0].Points.Front9)
	assert.Equal(t, InProgress, MatchStatus(out, rules, out.Matches[0]))
	assert.Equal(t, Halved, out.Matches[1].Points.Front9)
	assert.Equal(t, Unset, out.Matches[2].Points.Front9)
	assert.Equal(t, Unset, out.Matches[3].Points.Front9)
	assert.Equal(t, Unset, out.Matches[4].Points.Front9)
	assert.Equal(t, Unset, doc.Matches[0].Points.Front9)
}
