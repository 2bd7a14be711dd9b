// Package history records one row per entropy CLI run so a failing seed can
// be found again after the seed file has been cleared by a later green run.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/entropy/seed"
)

// ErrInvalidRecord is returned by stores for records missing an ID or seed.
var ErrInvalidRecord = errors.New("invalid run record")

// Record describes a finished run.
type Record struct {
	ID          string
	Seed        int64
	Source      seed.Source
	Errored     bool
	Persisted   bool
	Packages    int
	FailedTests int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// NewID returns a fresh run ID.
func NewID() string {
	return uuid.NewString()
}

// Validate reports whether r can be stored.
func (r Record) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	if r.Seed == 0 {
		return errors.Join(ErrInvalidRecord, errors.New("seed is required"))
	}
	return nil
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run records.
type Store interface {
	Put(ctx context.Context, r Record) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
