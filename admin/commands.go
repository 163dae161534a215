package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cpacia/classic-server/session"
	"github.com/cpacia/classic-server/tournament"
)

func init() {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"show", "Print the scoreboard", "Print team totals and every match, or the draft board with --draft.", &showCommand{}},
		{"watch", "Keep printing the scoreboard", "Poll the server and print the scoreboard whenever it changes.", &watchCommand{}},
		{"draft", "Put a player on a team", "Assign a player to a team or to the captain group.", &draftCommand{}},
		{"undraft", "Return a player to the pool", "Remove a player from their team and from every match slot.", &undraftCommand{}},
		{"available", "List players for a slot", "List the players that may fill a match slot for a team.", &availableCommand{}},
		{"slot", "Fill or clear a match slot", "Place a player in slot 1 or 2 of a match; '-' clears the slot. Any change clears the match's scores.", &slotCommand{}},
		{"swap", "Swap a match's two players", "Swap the players of a match and clear its scores.", &swapCommand{}},
		{"hole", "Record a hole", "Record a hole result from slot 1's side: win, loss, halved, or - to clear.", &holeCommand{}},
		{"nine", "Record a nine", "Record a front or back nine result for a match not scored hole by hole.", &nineCommand{}},
		{"clear", "Clear a match's scores", "Unset every score of one match.", &clearCommand{}},
		{"start", "Mark every match in progress", "Record 0 on the front nine of every ready match that has no front nine yet.", &startCommand{}},
		{"reset", "Clear every score", "Unset every score in the tournament. Requires --yes.", &resetCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}
}

type editFunc func(doc *tournament.Document, rules tournament.Rules) (*tournament.Document, error)

// edit connects, applies fn and saves.
func edit(label string, fn editFunc) error {
	ctx, cancel := signalContext()
	defer cancel()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	return applyAndSave(ctx, s, os.Stdout, label, fn)
}

func applyAndSave(ctx context.Context, s *session.Session, out io.Writer, label string, fn editFunc) error {
	rules := s.Rules()
	err := s.Apply(func(d *tournament.Document) (*tournament.Document, error) {
		return fn(d, rules)
	})
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (saved %s)\n", label, s.Expected())
	return nil
}

func parseResult(s string) (tournament.Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w", "1":
		return tournament.Win, nil
	case "loss", "l", "0":
		return tournament.Loss, nil
	case "halved", "half", "h", "0.5", ".5":
		return tournament.Halved, nil
	case "-", "clear", "none":
		return tournament.Unset, nil
	}
	return tournament.Unset, fmt.Errorf("%w: %q", tournament.ErrInvalidResult, s)
}

func parseNine(s string) (tournament.Nine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "f", "1":
		return tournament.Front, nil
	case "back", "b", "2":
		return tournament.Back, nil
	}
	return 0, fmt.Errorf("unknown nine %q, use front or back", s)
}

// slotTeam is the team a slot drafts for when --team is not given: slot 1
// plays for the first team, slot 2 for the second.
func slotTeam(rules tournament.Rules, slot int, team string) tournament.Team {
	if team != "" {
		return tournament.Team(team)
	}
	if slot == 0 {
		return rules.TeamA
	}
	return rules.TeamB
}

type matchArg struct {
	Match int `positional-arg-name:"match" required:"yes" description:"Match number, starting at 1"`
}

type showCommand struct {
	Draft bool `long:"draft" description:"Show the draft board instead"`
	Match int  `long:"match" description:"Show the handicap strokes of one match"`
}

func (c *showCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	doc := s.Document()
	switch {
	case c.Draft:
		printDraft(os.Stdout, doc, s.Rules())
	case c.Match > 0:
		mu, err := tournament.MatchupDetail(doc, s.Rules(), tournament.DefaultCourse(), c.Match-1)
		if err != nil {
			return err
		}
		printMatchup(os.Stdout, mu)
	default:
		printScoreboard(os.Stdout, doc, s.Rules())
	}
	return nil
}

type watchCommand struct {
	Interval time.Duration `long:"interval" default:"30s" description:"Polling interval"`
}

func (c *watchCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	last := ""
	p := session.NewPoller(s)
	p.Interval = c.Interval
	p.OnRefresh = func() {
		doc := s.Document()
		if doc.Meta.LastUpdated == last {
			return
		}
		last = doc.Meta.LastUpdated
		printScoreboard(os.Stdout, doc, s.Rules())
		fmt.Println()
	}
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type draftCommand struct {
	Args struct {
		Player string `positional-arg-name:"player" required:"yes"`
		Team   string `positional-arg-name:"team" required:"yes"`
	} `positional-args:"yes"`
}

func (c *draftCommand) Execute(args []string) error {
	return edit(fmt.Sprintf("%s drafted to %s", c.Args.Player, c.Args.Team), func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.AssignTeam(d, rules, c.Args.Player, tournament.Team(c.Args.Team))
	})
}

type undraftCommand struct {
	Args struct {
		Player string `positional-arg-name:"player" required:"yes"`
	} `positional-args:"yes"`
}

func (c *undraftCommand) Execute(args []string) error {
	return edit(fmt.Sprintf("%s returned to the pool", c.Args.Player), func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.RemoveFromTeam(d, c.Args.Player)
	})
}

type availableCommand struct {
	Team string `long:"team" description:"Team drafting for the slot (default: slot 1 plays for the first team)"`
	Args struct {
		Match int `positional-arg-name:"match" required:"yes" description:"Match number, starting at 1"`
		Slot  int `positional-arg-name:"slot" required:"yes" description:"1 or 2"`
	} `positional-args:"yes"`
}

func (c *availableCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	slot := c.Args.Slot - 1
	players, err := tournament.AvailablePlayers(s.Document(), s.Rules(), c.Args.Match-1, slot, slotTeam(s.Rules(), slot, c.Team))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range players {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d pops\t%s\n", p.Rank, p.ID, p.Name, p.Pops, teamLabel(s.Rules(), p.Team))
	}
	return tw.Flush()
}

type slotCommand struct {
	Team string `long:"team" description:"Team drafting for the slot (default: slot 1 plays for the first team)"`
	Args struct {
		Match  int    `positional-arg-name:"match" required:"yes" description:"Match number, starting at 1"`
		Slot   int    `positional-arg-name:"slot" required:"yes" description:"1 or 2"`
		Player string `positional-arg-name:"player" required:"yes" description:"Player ID, or - to clear"`
	} `positional-args:"yes"`
}

func (c *slotCommand) Execute(args []string) error {
	player := c.Args.Player
	if player == "-" {
		player = ""
	}
	slot := c.Args.Slot - 1
	label := fmt.Sprintf("Match %d slot %d set to %s", c.Args.Match, c.Args.Slot, c.Args.Player)
	return edit(label, func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.AssignSlot(d, rules, c.Args.Match-1, slot, player, slotTeam(rules, slot, c.Team))
	})
}

type swapCommand struct {
	Args matchArg `positional-args:"yes"`
}

func (c *swapCommand) Execute(args []string) error {
	return edit(fmt.Sprintf("Match %d swapped", c.Args.Match), func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.SwapSlots(d, c.Args.Match-1)
	})
}

type holeCommand struct {
	Toggle bool `long:"toggle" description:"Clear the hole if it already holds this result"`
	Args   struct {
		Match  int    `positional-arg-name:"match" required:"yes" description:"Match number, starting at 1"`
		Hole   int    `positional-arg-name:"hole" required:"yes" description:"1 to 18"`
		Result string `positional-arg-name:"result" required:"yes" description:"win, loss, halved or -"`
	} `positional-args:"yes"`
}

func (c *holeCommand) Execute(args []string) error {
	res, err := parseResult(c.Args.Result)
	if err != nil {
		return err
	}
	record := tournament.RecordHole
	if c.Toggle {
		record = tournament.ToggleHole
	}
	label := fmt.Sprintf("Match %d hole %d: %s", c.Args.Match, c.Args.Hole, res)
	return edit(label, func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return record(d, rules, c.Args.Match-1, c.Args.Hole, res)
	})
}

type nineCommand struct {
	Args struct {
		Match  int    `positional-arg-name:"match" required:"yes" description:"Match number, starting at 1"`
		Nine   string `positional-arg-name:"nine" required:"yes" description:"front or back"`
		Result string `positional-arg-name:"result" required:"yes" description:"win, loss, halved or -"`
	} `positional-args:"yes"`
}

func (c *nineCommand) Execute(args []string) error {
	nine, err := parseNine(c.Args.Nine)
	if err != nil {
		return err
	}
	res, err := parseResult(c.Args.Result)
	if err != nil {
		return err
	}
	label := fmt.Sprintf("Match %d %s: %s", c.Args.Match, nine, res)
	return edit(label, func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.SetNine(d, rules, c.Args.Match-1, nine, res)
	})
}

type clearCommand struct {
	Args matchArg `positional-args:"yes"`
}

func (c *clearCommand) Execute(args []string) error {
	return edit(fmt.Sprintf("Match %d cleared", c.Args.Match), func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.ClearScores(d, c.Args.Match-1)
	})
}

type startCommand struct{}

func (c *startCommand) Execute(args []string) error {
	return edit("All ready matches marked in progress", func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.MarkAllInProgress(d, rules), nil
	})
}

type resetCommand struct {
	Yes bool `long:"yes" description:"Confirm clearing every score"`
}

func (c *resetCommand) Execute(args []string) error {
	if !c.Yes {
		return errors.New("reset clears every score in the tournament, pass --yes to confirm")
	}
	return edit("All scores cleared", func(d *tournament.Document, rules tournament.Rules) (*tournament.Document, error) {
		return tournament.ResetAllScores(d), nil
	})
}
