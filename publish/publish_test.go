package publish

import (
	"context"
	"strings"
	"testing"

	"github.com/cpacia/classic-server/store"
	"github.com/cpacia/classic-server/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const seed = `{
  "meta": {"lastUpdated": "2026-05-01T10:00:00.000Z"},
  "players": {
    "alice": {"name": "Alice", "rank": 1, "pops": 2, "team": "brock"},
    "bob":   {"name": "Bob",   "rank": 2, "pops": 0, "team": "jared"},
    "coach": {"name": "Coach", "rank": 99, "pops": 0, "team": "coach"}
  },
  "matches": [
    {"id": 1, "playerIds": ["alice", "bob"], "points": {"front9": null, "back9": null}},
    {"id": 2, "playerIds": [null, null], "points": {"front9": null, "back9": null}},
    {"id": 3, "playerIds": [null, null], "points": {"front9": null, "back9": null}},
    {"id": 4, "playerIds": [null, null], "points": {"front9": null, "back9": null}},
    {"id": 5, "playerIds": [null, null], "points": {"front9": null, "back9": null}},
    {"id": 6, "playerIds": [null, null], "points": {"front9": null, "back9": null}}
  ]
}`

func newStore(t *testing.T) *store.Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := store.New(db)
	require.NoError(t, err)
	_, err = s.Seed(context.Background(), []byte(seed))
	require.NoError(t, err)
	return s
}

func edit(t *testing.T, st Store, stamp string, result tournament.Result) *tournament.Document {
	doc, _, err := Load(context.Background(), st, tournament.DefaultRules())
	require.NoError(t, err)
	doc, err = tournament.SetNine(doc, tournament.DefaultRules(), 0, tournament.Front, result)
	require.NoError(t, err)
	doc.Meta.LastUpdated = stamp
	return doc
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	doc := edit(t, st, "2026-05-01T10:05:00.000Z", tournament.Win)
	res, err := Publish(ctx, st, rules, doc, "2026-05-01T10:00:00.000Z", "score")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01T10:05:00.000Z", res.LastUpdated)

	got, sha, err := Load(ctx, st, rules)
	require.NoError(t, err)
	assert.Equal(t, res.Sha, sha)
	assert.Equal(t, tournament.Win, got.Matches[0].Points.Front9)
	assert.Equal(t, "2026-05-01T10:05:00.000Z", got.Meta.LastUpdated)
}

func TestPublish_Conflict(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	// Two admins load the 10:00 document; the first saves at 10:05.
	first := edit(t, st, "2026-05-01T10:05:00.000Z", tournament.Win)
	second := edit(t, st, "2026-05-01T10:06:00.000Z", tournament.Loss)

	_, err := Publish(ctx, st, rules, first, "2026-05-01T10:00:00.000Z", "first")
	require.NoError(t, err)

	_, err = Publish(ctx, st, rules, second, "2026-05-01T10:00:00.000Z", "second")
	assert.ErrorIs(t, err, ErrConflict)

	got, _, err := Load(ctx, st, rules)
	require.NoError(t, err)
	assert.Equal(t, tournament.Win, got.Matches[0].Points.Front9)

	// Reloading picks up the new stamp and the retry goes through.
	_, err = Publish(ctx, st, rules, second, "2026-05-01T10:05:00.000Z", "second")
	assert.NoError(t, err)
}

func TestPublish_NoExpectedStillChecksRevision(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	doc := edit(t, st, "2026-05-01T10:05:00.000Z", tournament.Halved)
	_, err := Publish(ctx, st, rules, doc, "", "blind")
	assert.NoError(t, err)
}

func TestPublish_RejectsCaptainInMatch(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	doc, _, err := Load(ctx, st, rules)
	require.NoError(t, err)
	doc.Matches[1].PlayerIDs = [2]string{"coach", ""}

	_, err = Publish(ctx, st, rules, doc, "", "captain")
	assert.ErrorIs(t, err, tournament.ErrCaptainInMatch)
}

func TestPublish_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	doc, _, err := Load(ctx, st, rules)
	require.NoError(t, err)
	doc.Matches = doc.Matches[:4]

	_, err = Publish(ctx, st, rules, doc, "", "short")
	assert.ErrorIs(t, err, tournament.ErrInvalidDocument)
}

type staleStore struct{ *store.Store }

func (s staleStore) Write(ctx context.Context, content []byte, base, message string) (string, error) {
	return "", store.ErrStale
}

func TestPublish_StaleRevisionIsConflict(t *testing.T) {
	ctx := context.Background()
	st := staleStore{newStore(t)}
	doc := edit(t, st, "2026-05-01T10:05:00.000Z", tournament.Win)

	_, err := Publish(ctx, st, tournament.DefaultRules(), doc, "2026-05-01T10:00:00.000Z", "race")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPublish_EmptyStore(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	st, err := store.New(db)
	require.NoError(t, err)

	doc, err := tournament.Decode([]byte(seed), tournament.DefaultRules())
	require.NoError(t, err)
	_, err = Publish(ctx, st, tournament.DefaultRules(), doc, "2026-05-01T09:00:00.000Z", "init")
	require.NoError(t, err)

	snap, err := st.Read(ctx)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(snap.Content), `"alice"`))
}

func TestPublish_RejectsStampBehindHead(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	// Right baseline, but the editor's clock is an hour slow.
	doc := edit(t, st, "2026-05-01T09:00:00.000Z", tournament.Win)
	_, err := Publish(ctx, st, rules, doc, "2026-05-01T10:00:00.000Z", "slow clock")
	assert.ErrorIs(t, err, tournament.ErrInvalidDocument)

	got, _, err := Load(ctx, st, rules)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01T10:00:00.000Z", got.Meta.LastUpdated)
	assert.Equal(t, tournament.Unset, got.Matches[0].Points.Front9)

	// An equal stamp is still accepted.
	doc = edit(t, st, "2026-05-01T10:00:00.000Z", tournament.Win)
	_, err = Publish(ctx, st, rules, doc, "2026-05-01T10:00:00.000Z", "same ms")
	assert.NoError(t, err)
}

func TestPublish_RejectsMissingStamp(t *testing.T) {
	ctx := context.Background()
	rules := tournament.DefaultRules()
	st := newStore(t)

	doc := edit(t, st, "", tournament.Win)
	_, err := Publish(ctx, st, rules, doc, "2026-05-01T10:00:00.000Z", "unstamped")
	assert.ErrorIs(t, err, tournament.ErrInvalidDocument)

	_, err = Publish(ctx, st, rules, doc, "", "unstamped")
	assert.ErrorIs(t, err, tournament.ErrInvalidDocument)

	got, _, err := Load(ctx, st, rules)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01T10:00:00.000Z", got.Meta.LastUpdated)
}
