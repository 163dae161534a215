package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpacia/classic-server/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterServer(t *testing.T) *httptest.Server {
	htmlContent, err := os.ReadFile(filepath.Join("testdata", "roster.html"))
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(htmlContent)
	}))
	t.Cleanup(server.Close)
	return server
}

func Test_scrapeRoster(t *testing.T) {
	server := rosterServer(t)

	entries, err := scrapeRoster(server.URL)
	require.NoError(t, err)
	assert.Equal(t, []RosterEntry{
		{Rank: 1, Name: "Alice", Pops: 3},
		{Rank: 2, Name: "Dan Rivers", Pops: 4},
		{Rank: 5, Name: "Bob", Pops: 0},
		{Rank: 6, Name: "Cal", Pops: 1},
	}, entries)
}

func Test_scrapeRosterEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>No field yet</p></body></html>"))
	}))
	defer server.Close()

	_, err := scrapeRoster(server.URL)
	assert.Error(t, err)
}

func Test_mergeRoster(t *testing.T) {
	rules := tournament.DefaultRules()
	doc, err := tournament.Decode(testFixture(t), rules)
	require.NoError(t, err)
	// Before the draft: nobody on a playing team, nobody in a match.
	for _, p := range doc.Players {
		if p.Team != rules.Captain {
			p.Team = tournament.Unassigned
		}
	}
	for _, m := range doc.Matches {
		m.PlayerIDs = [2]string{}
		m.Points = tournament.Points{}
	}
	doc.Players["dan-rivers"] = &tournament.Player{ID: "dan-rivers", Name: "Danny"}

	out, added, updated, skipped := mergeRoster(doc, rules, []RosterEntry{
		{Rank: 1, Name: "alice", Pops: 3},
		{Rank: 2, Name: "Dan Rivers", Pops: 4},
		{Rank: 6, Name: "Cal", Pops: 1},
	})
	assert.Equal(t, []string{"dan-rivers-2"}, added)
	assert.Equal(t, []string{"alice", "cal"}, updated)
	assert.Empty(t, skipped)

	assert.Equal(t, 3, out.Players["alice"].Pops)
	assert.Equal(t, "Dan Rivers", out.Players["dan-rivers-2"].Name)
	assert.Equal(t, tournament.Unassigned, out.Players["dan-rivers-2"].Team)
	assert.Equal(t, 2, doc.Players["alice"].Pops)
	assert.NoError(t, tournament.Validate(out, rules))
}

func Test_mergeRosterAfterDraftStarts(t *testing.T) {
	rules := tournament.DefaultRules()
	doc, err := tournament.Decode(testFixture(t), rules)
	require.NoError(t, err)

	out, added, updated, skipped := mergeRoster(doc, rules, []RosterEntry{
		{Rank: 1, Name: "alice", Pops: 3},
		{Rank: 2, Name: "Dan Rivers", Pops: 4},
	})
	assert.Empty(t, added)
	assert.Equal(t, []string{"alice"}, updated)
	assert.Equal(t, []string{"Dan Rivers"}, skipped)
	assert.Len(t, out.Players, len(doc.Players))
	assert.Equal(t, tournament.Team("brock"), out.Players["alice"].Team)
	assert.Equal(t, 3, out.Players["alice"].Pops)
}

func TestServer_POSTRosterImport(t *testing.T) {
	_, ts := newTestServer(t)
	roster := rosterServer(t)
	auth := login(t, ts)

	resp := postJSON(t, ts.URL+"/api/roster/import", RosterImportRequest{URL: "ftp://example.com"}, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The fixture's draft is under way, so the field is fixed.
	resp = postJSON(t, ts.URL+"/api/roster/import", RosterImportRequest{URL: roster.URL}, "Authorization", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out RosterImportResponse
	decodeBody(t, resp, &out)
	assert.Empty(t, out.Added)
	assert.Equal(t, []string{"Dan Rivers"}, out.Skipped)
	assert.ElementsMatch(t, []string{"alice", "bob", "cal"}, out.Updated)
	// Stamped by the server clock.
	assert.Equal(t, "2026-01-01T11:00:00.000Z", out.LastUpdated)

	resp = get(t, ts.URL+"/api/draft")
	var board DraftResponse
	decodeBody(t, resp, &board)
	names := []string{}
	for _, p := range board.Pool {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Eve"}, names)

	// Importing the same field again changes nothing.
	resp = postJSON(t, ts.URL+"/api/roster/import", RosterImportRequest{URL: roster.URL}, "Authorization", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &out)
	assert.Empty(t, out.Added)
	assert.Empty(t, out.Updated)
	assert.Equal(t, "2026-01-01T11:00:00.000Z", out.LastUpdated)
}
