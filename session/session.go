// Package session holds one client's working copy of the tournament and
// drives saving it back with a lastUpdated check.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cpacia/classic-server/tournament"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrConflict is returned by Save when another writer has changed the
	// stored document since it was loaded. Backends wrap it as well.
	ErrConflict = errors.New("data was modified by another user, reload and try again")

	// ErrSaveInProgress rejects a save or edit while a save is running.
	ErrSaveInProgress = errors.New("save already in progress")

	ErrNotLoaded = errors.New("no document loaded")
)

// Backend is the persistence endpoint as seen from a client.
type Backend interface {
	Fetch(ctx context.Context) (*tournament.Document, error)
	// Save writes doc if the stored document still carries expected. It
	// returns an error wrapping ErrConflict when it does not.
	Save(ctx context.Context, doc *tournament.Document, expected string) error
}

type State int

const (
	Idle State = iota
	Checking
	Writing
	Saved
	Conflict
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Writing:
		return "writing"
	case Saved:
		return "saved"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is safe for concurrent use. Edits, saves and refreshes are
// serialized on one mutex; the network calls of Save and Refresh run
// outside it.
type Session struct {
	backend Backend
	rules   tournament.Rules
	clock   clockwork.Clock

	mu       sync.Mutex
	doc      *tournament.Document
	expected string
	unsaved  bool
	saving   bool
	state    State
	lastErr  error
	// gen increments whenever doc is replaced so an in-flight refresh can
	// tell that it has been superseded.
	gen uint64
}

func New(backend Backend, rules tournament.Rules, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		backend: backend,
		rules:   rules,
		clock:   clock,
	}
}

// Load replaces the working copy with the stored document, discarding
// unsaved edits. On error the previous copy is kept.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.mu.Unlock()

	doc, err := s.backend.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("loading tournament: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.replace(doc)
	s.unsaved = false
	s.state = Idle
	s.lastErr = nil
	return nil
}

// Document returns a copy of the working document, or nil before Load.
func (s *Session) Document() *tournament.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.Clone()
}

func (s *Session) Rules() tournament.Rules {
	return s.rules
}

// Expected is the lastUpdated stamp the next save is checked against.
func (s *Session) Expected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}

func (s *Session) Unsaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// State returns the save state and the error that produced it, if any.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// Apply runs a document command against the working copy. A failed command
// leaves the copy unchanged.
func (s *Session) Apply(cmd func(*tournament.Document) (*tournament.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotLoaded
	}
	if s.saving {
		return ErrSaveInProgress
	}
	next, err := cmd(s.doc)
	if err != nil {
		return err
	}
	s.doc = next
	s.gen++
	s.unsaved = true
	if s.state != Conflict {
		s.state = Idle
	}
	return nil
}

// Save publishes the working copy. It checks the stored stamp against the
// one captured at load, stamps the copy with the current time and writes
// it. Conflicts are never retried; after one the caller must Load.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	if m, found := tournament.CaptainInMatch(s.doc, s.rules); found {
		err := fmt.Errorf("match %d: %w", m.ID, tournament.ErrCaptainInMatch)
		s.state, s.lastErr = Failed, err
		s.mu.Unlock()
		return err
	}
	s.saving = true
	s.state, s.lastErr = Checking, nil
	next := s.doc.Clone()
	expected := s.expected
	s.mu.Unlock()

	err := s.save(ctx, next, expected)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	switch {
	case err == nil:
		s.replace(next)
		s.unsaved = false
		s.state = Saved
		log.Info().Str("lastUpdated", next.Meta.LastUpdated).Msg("Tournament saved")
	case errors.Is(err, ErrConflict):
		s.state = Conflict
		log.Warn().Err(err).Str("expected", expected).Msg("Save conflict")
	default:
		s.state = Failed
		log.Error().Err(err).Msg("Save failed")
	}
	s.lastErr = err
	return err
}

func (s *Session) save(ctx context.Context, next *tournament.Document, expected string) error {
	current, err := s.backend.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("checking stored document: %w", err)
	}
	if expected != "" && current.Meta.LastUpdated != expected {
		return fmt.Errorf("%w: stored %s, loaded %s", ErrConflict, current.Meta.LastUpdated, expected)
	}

	s.setState(Writing)
	tournament.Stamp(next, s.clock.Now())
	if err := s.backend.Save(ctx, next, expected); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// Refresh fetches the stored document and adopts it when it is not older
// than the working copy. It reports whether the copy was replaced. Nothing
// is applied while a save runs or over unsaved edits, and a response that
// lands after the copy changed is discarded.
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.saving || s.unsaved {
		s.mu.Unlock()
		return false, nil
	}
	gen := s.gen
	s.mu.Unlock()

	doc, err := s.backend.Fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("refreshing tournament: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving || s.unsaved || s.gen != gen {
		return false, nil
	}
	if !tournament.NotOlder(doc, s.doc) {
		return false, nil
	}
	s.replace(doc)
	return true, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// replace must be called with mu held.
func (s *Session) replace(doc *tournament.Document) {
	s.doc = doc
	s.expected = doc.Meta.LastUpdated
	s.gen++
}
