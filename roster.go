package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cpacia/classic-server/tournament"
	"github.com/gocolly/colly"
	"github.com/rs/zerolog/log"
)

// RosterEntry is one row of an imported field: draft rank, name and pops.
type RosterEntry struct {
	Rank int
	Name string
	Pops int
}

// scrapeRoster reads the first table on the page whose body rows have
// rank, name and pops columns. Rows that don't parse are skipped.
func scrapeRoster(url string) ([]RosterEntry, error) {
	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/115.0.0.0 Safari/537.36"),
	)
	c.Async = true

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Cache-Control", "no-cache")
		log.Debug().Str("url", r.URL.String()).Msg("Visiting")
	})

	var entries []RosterEntry
	c.OnHTML("table tbody > tr", func(e *colly.HTMLElement) {
		tds := e.DOM.ChildrenFiltered("td")
		if tds.Length() < 3 {
			return
		}
		cells := make([]string, 0, 3)
		tds.Slice(0, 3).Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})

		rank, err := parseInt(cells[0])
		if err != nil {
			return
		}
		pops, err := parseInt(cells[2])
		if err != nil {
			return
		}
		if cells[1] == "" {
			return
		}
		entries = append(entries, RosterEntry{Rank: rank, Name: cells[1], Pops: pops})
	})

	if err := c.Visit(url); err != nil {
		return nil, err
	}
	c.Wait()

	if len(entries) == 0 {
		return nil, fmt.Errorf("no roster rows parsed from URL: %s", url)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return entries, nil
}

// parseInt accepts "7", "T7" and "+3" style cells.
func parseInt(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "T")
	s = strings.TrimPrefix(s, "+")
	return strconv.Atoi(s)
}

// mergeRoster updates rank and pops of players matched by name. Unmatched
// entries are added undrafted while the draft has not started; after that
// the field is fixed and they are returned as skipped.
func mergeRoster(doc *tournament.Document, rules tournament.Rules, entries []RosterEntry) (out *tournament.Document, added, updated, skipped []string) {
	out = doc.Clone()
	byName := make(map[string]*tournament.Player, len(out.Players))
	for _, p := range out.Players {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}
	open := tournament.Board(doc, rules).Status == tournament.DraftWaiting

	added, updated, skipped = []string{}, []string{}, []string{}
	for _, e := range entries {
		if p, ok := byName[strings.ToLower(e.Name)]; ok {
			if p.Rank != e.Rank || p.Pops != e.Pops {
				p.Rank, p.Pops = e.Rank, e.Pops
				updated = append(updated, p.ID)
			}
			continue
		}
		if !open {
			skipped = append(skipped, e.Name)
			continue
		}
		id := playerID(out, e.Name)
		p := &tournament.Player{ID: id, Name: e.Name, Rank: e.Rank, Pops: e.Pops}
		out.Players[id] = p
		byName[strings.ToLower(e.Name)] = p
		added = append(added, id)
	}
	return out, added, updated, skipped
}

// playerID derives an unused map key from a name: "Jon Smith" is
// "jon-smith", then "jon-smith-2" and so on.
func playerID(doc *tournament.Document, name string) string {
	base := strings.ToLower(strings.Join(strings.Fields(basicSanitize(name)), "-"))
	if base == "" {
		base = "player"
	}
	id := base
	for n := 2; ; n++ {
		if _, taken := doc.Players[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
