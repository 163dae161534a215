package tournament

import (
	"encoding/json"
	"fmt"
	"time"
)

// Decode parses, validates and normalizes a tournament document. Any
// validation failure wraps ErrInvalidDocument.
func Decode(data []byte, rules Rules) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, err)
	}
	if err := Normalize(&doc, rules); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode writes the document the way the store keeps it.
func Encode(doc *Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Normalize fills player IDs from their keys, validates the document and
// re-derives the nines of every hole-tracked match.
func Normalize(doc *Document, rules Rules) error {
	for id, p := range doc.Players {
		if p == nil {
			return invalid("player %q is null", id)
		}
		p.ID = id
	}
	if err := Validate(doc, rules); err != nil {
		return err
	}
	for _, m := range doc.Matches {
		if m.Points.Holes != nil {
			rederive(m)
		}
	}
	return nil
}

// Validate checks the structural rules of a document. It does not check
// matchup validity; invalid matchups are legal while a draft is underway.
func Validate(doc *Document, rules Rules) error {
	if doc.Meta.LastUpdated != "" {
		if _, err := time.Parse(time.RFC3339Nano, doc.Meta.LastUpdated); err != nil {
			return invalid("meta.lastUpdated %q is not an ISO-8601 timestamp", doc.Meta.LastUpdated)
		}
	}
	if len(doc.Players) == 0 {
		return invalid("no players")
	}
	for id, p := range doc.Players {
		if p == nil {
			return invalid("player %q is null", id)
		}
		if id == "" {
			return invalid("player with empty id")
		}
		if p.Pops < 0 {
			return invalid("player %q has negative pops", id)
		}
		if !rules.Known(p.Team) {
			return invalid("player %q: %s %q", id, ErrUnknownTeam, p.Team)
		}
	}
	for _, team := range []Team{rules.TeamA, rules.TeamB} {
		if n := len(Roster(doc, team)); n > rules.Capacity {
			return invalid("%s has %d players, capacity is %d", rules.Name(team), n, rules.Capacity)
		}
	}
	if len(doc.Matches) != rules.Matches {
		return invalid("expected %d matches, got %d", rules.Matches, len(doc.Matches))
	}
	seen := make(map[string]int)
	for i, m := range doc.Matches {
		if m == nil {
			return invalid("match %d is null", i)
		}
		for _, id := range m.PlayerIDs {
			if id == "" {
				continue
			}
			if _, ok := doc.Players[id]; !ok {
				return invalid("match %d: %s %q", m.ID, ErrUnknownPlayer, id)
			}
			if prev, dup := seen[id]; dup {
				return invalid("player %q appears in matches %d and %d", id, prev, m.ID)
			}
			seen[id] = m.ID
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}
