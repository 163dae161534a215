package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrEmpty is returned by Read before the first revision is written.
	ErrEmpty = errors.New("store has no revisions")

	// ErrStale is returned by Write when the base revision is no longer
	// the head.
	ErrStale = errors.New("base revision is not the head")
)

// Revision is one committed version of the tournament document.
type Revision struct {
	ID        uint   `gorm:"primaryKey"`
	Sha       string `gorm:"uniqueIndex;size:40"`
	Parent    string `gorm:"size:40"`
	Content   datatypes.JSON
	Message   string
	CreatedAt time.Time
}

type Snapshot struct {
	Content []byte
	Sha     string
}

type Store struct {
	db *gorm.DB
}

// New migrates the revision table and returns a store on db.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Revision{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Read returns the head revision.
func (s *Store) Read(ctx context.Context) (*Snapshot, error) {
	rev, err := head(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &Snapshot{Content: []byte(rev.Content), Sha: rev.Sha}, nil
}

// Write commits content on top of base, which must be the current head
// sha, or empty when the store has no revisions.
func (s *Store) Write(ctx context.Context, content []byte, base, message string) (string, error) {
	var sha string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current := ""
		rev, err := head(tx)
		if err == nil {
			current = rev.Sha
		} else if !errors.Is(err, ErrEmpty) {
			return err
		}
		if current != base {
			return fmt.Errorf("%w: head is %q, write based on %q", ErrStale, current, base)
		}

		sha = revisionSha(base, content)
		return tx.Create(&Revision{
			Sha:     sha,
			Parent:  base,
			Content: datatypes.JSON(content),
			Message: message,
		}).Error
	})
	if err != nil {
		return "", err
	}
	return sha, nil
}

// Seed writes content as the first revision when the store is empty. It
// reports whether anything was written.
func (s *Store) Seed(ctx context.Context, content []byte) (bool, error) {
	_, err := s.Read(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrEmpty) {
		return false, err
	}
	if _, err := s.Write(ctx, content, "", "Initial tournament data"); err != nil {
		return false, err
	}
	return true, nil
}

// Log lists revisions newest first without their content.
func (s *Store) Log(ctx context.Context, limit int) ([]Revision, error) {
	var revs []Revision
	q := s.db.WithContext(ctx).Select("id", "sha", "parent", "message", "created_at").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&revs).Error; err != nil {
		return nil, err
	}
	return revs, nil
}

func head(db *gorm.DB) (*Revision, error) {
	var rev Revision
	err := db.Order("id DESC").First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// revisionSha hashes the parent together with the content so identical
// content committed twice still gets distinct revisions.
func revisionSha(parent string, content []byte) string {
	h := sha1.New()
	h.Write([]byte(parent))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
