package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cpacia/classic-server/tournament"
)

func teamLabel(rules tournament.Rules, t tournament.Team) string {
	switch t {
	case tournament.Unassigned:
		return "pool"
	case rules.Captain:
		return "captain"
	}
	return rules.Name(t)
}

func playerLabel(p *tournament.Player) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", p.Name, p.Pops)
}

// printScoreboard writes team totals followed by one line per match.
func printScoreboard(w io.Writer, doc *tournament.Document, rules tournament.Rules) {
	totals := tournament.TeamTotals(doc, rules)
	progress := tournament.ScoringProgress(doc, rules)

	fmt.Fprintf(w, "%s %g  -  %g %s", rules.Name(rules.TeamA), totals[rules.TeamA], totals[rules.TeamB], rules.Name(rules.TeamB))
	if leader := totals.Leader(rules); leader != tournament.Unassigned {
		fmt.Fprintf(w, "  (%s leads)", rules.Name(leader))
	}
	fmt.Fprintf(w, "\n%d of %d matches complete (%d%%)\n\n", progress.Complete, len(doc.Matches), progress.Percent)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSLOT 1\tSLOT 2\tFRONT\tBACK\tSTATUS")
	for _, m := range doc.Matches {
		front, back := tournament.EffectivePoints(doc, rules, m)
		status := string(tournament.MatchStatus(doc, rules, m))
		if m.Filled() && !tournament.ValidMatchup(doc, rules, m) {
			status = "invalid"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", m.ID,
			playerLabel(doc.SlotPlayer(m, 0)), playerLabel(doc.SlotPlayer(m, 1)),
			front, back, strings.ReplaceAll(status, "_", " "))
	}
	tw.Flush()
}

func printDraft(w io.Writer, doc *tournament.Document, rules tournament.Rules) {
	board := tournament.Board(doc, rules)
	fmt.Fprintf(w, "Draft %s: %d of %d drafted\n\n", board.Status, board.Drafted, board.Draftable)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tb := range board.Teams {
		fmt.Fprintf(tw, "%s\t\t\n", tb.Name)
		for _, pick := range tb.Picks {
			fmt.Fprintf(tw, "  %d\t%s\t\n", pick.Number, playerLabel(pick.Player))
		}
	}
	if len(board.Captains) > 0 {
		fmt.Fprintln(tw, "Captains\t\t")
		for _, p := range board.Captains {
			fmt.Fprintf(tw, "  \t%s\t\n", p.Name)
		}
	}
	fmt.Fprintln(tw, "Pool\t\t")
	for _, p := range board.Pool {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", p.Rank, playerLabel(p), p.ID)
	}
	tw.Flush()
}

func printMatchup(w io.Writer, mu *tournament.Matchup) {
	fmt.Fprintf(w, "Match %d: %s vs %s\n", mu.MatchID, playerLabel(mu.Players[0]), playerLabel(mu.Players[1]))
	if mu.Underdog == nil {
		fmt.Fprintln(w, "Even match, no strokes.")
		return
	}
	fmt.Fprintf(w, "%s gets %d stroke(s)\n", mu.Underdog.Name, mu.PopsDiff)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOLE\tPAR\tHCP")
	for _, h := range append(append([]tournament.Hole{}, mu.Front9...), mu.Back9...) {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", h.Number, h.Par, h.Handicap)
	}
	tw.Flush()
}
