// Package publish implements the server side of saving a tournament: a
// check of the document's lastUpdated stamp against the stored head,
// followed by a write conditional on the store revision.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cpacia/classic-server/store"
	"github.com/cpacia/classic-server/tournament"
)

// ErrConflict means another writer got there first. The caller must reload.
var ErrConflict = errors.New("data was modified by another user, reload and try again")

type Store interface {
	Read(ctx context.Context) (*store.Snapshot, error)
	Write(ctx context.Context, content []byte, base, message string) (string, error)
}

type Result struct {
	Sha         string `json:"sha"`
	LastUpdated string `json:"lastUpdated"`
}

// Load reads and decodes the head document.
func Load(ctx context.Context, st Store, rules tournament.Rules) (*tournament.Document, string, error) {
	snap, err := st.Read(ctx)
	if err != nil {
		return nil, "", err
	}
	doc, err := tournament.Decode(snap.Content, rules)
	if err != nil {
		return nil, "", err
	}
	return doc, snap.Sha, nil
}

// Publish writes doc if the stored document still carries the expected
// lastUpdated stamp. An empty expected skips the stamp check but not the
// revision check. doc itself must be stamped no earlier than the stored
// copy.
func Publish(ctx context.Context, st Store, rules tournament.Rules, doc *tournament.Document, expected, message string) (*Result, error) {
	if m, found := tournament.CaptainInMatch(doc, rules); found {
		return nil, fmt.Errorf("match %d: %w", m.ID, tournament.ErrCaptainInMatch)
	}
	doc = doc.Clone()
	if err := tournament.Normalize(doc, rules); err != nil {
		return nil, err
	}

	base := ""
	snap, err := st.Read(ctx)
	switch {
	case err == nil:
		base = snap.Sha
		current := storedStamp(snap.Content)
		if expected != "" && current != "" && current != expected {
			return nil, fmt.Errorf("%w: stored %s, expected %s", ErrConflict, current, expected)
		}
		if err := checkStampOrder(doc, current); err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrEmpty):
		if err := checkStampOrder(doc, ""); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("reading current document: %w", err)
	}

	content, err := tournament.Encode(doc)
	if err != nil {
		return nil, err
	}
	sha, err := st.Write(ctx, content, base, message)
	if errors.Is(err, store.ErrStale) {
		return nil, fmt.Errorf("%w: %s", ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	return &Result{Sha: sha, LastUpdated: doc.Meta.LastUpdated}, nil
}

// checkStampOrder requires doc to carry a stamp no earlier than the stored
// one, so lastUpdated never moves backwards across accepted writes.
func checkStampOrder(doc *tournament.Document, stored string) error {
	next, err := doc.LastUpdated()
	if err != nil || doc.Meta.LastUpdated == "" {
		return fmt.Errorf("%w: meta.lastUpdated is required", tournament.ErrInvalidDocument)
	}
	if stored == "" {
		return nil
	}
	prev, err := time.Parse(time.RFC3339Nano, stored)
	if err != nil {
		return nil
	}
	if next.Before(prev) {
		return fmt.Errorf("%w: meta.lastUpdated %s is earlier than the stored %s", tournament.ErrInvalidDocument, doc.Meta.LastUpdated, stored)
	}
	return nil
}

// storedStamp pulls meta.lastUpdated out of stored content. Content that
// cannot be parsed has no stamp and does not block the save.
func storedStamp(content []byte) string {
	var head struct {
		Meta struct {
			LastUpdated string `json:"lastUpdated"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(content, &head); err != nil {
		return ""
	}
	return head.Meta.LastUpdated
}
