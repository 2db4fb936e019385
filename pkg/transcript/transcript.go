// Package transcript defines the archive for conversation history that a
// session no longer keeps in memory: the messages replaced by each
// compaction and the final history when a session ends.
//
// Backends live in subpackages (memory, postgres). Discard is the no-op
// store used when archiving is disabled.
package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/mcpchat/pkg/api"
)

// Kind says why a record was archived.
type Kind string

const (
	// KindCompaction records messages folded into a summary.
	KindCompaction Kind = "compaction"

	// KindFinal records the history left when the session ended.
	KindFinal Kind = "final"
)

// ErrConflict is returned when a record with the same session and sequence
// number already exists.
var ErrConflict = errors.New("transcript record already exists")

// Record is one archived slice of a session's history.
type Record struct {
	SessionID string        `json:"session_id"`
	Seq       int           `json:"seq"`
	Kind      Kind          `json:"kind"`
	Summary   string        `json:"summary,omitempty"`
	Messages  []api.Message `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists archived records.
type Store interface {
	// Archive stores a record. Seq must be unique per session.
	Archive(ctx context.Context, rec Record) error

	// Records returns a session's records ordered by Seq. An unknown
	// session yields an empty slice.
	Records(ctx context.Context, sessionID string) ([]Record, error)

	// Close releases backend resources.
	Close() error
}

// Discard is a Store that drops every record.
type Discard struct{}

var _ Store = Discard{}

// Archive drops rec.
func (Discard) Archive(context.Context, Record) error { return nil }

// Records always returns nothing.
func (Discard) Records(context.Context, string) ([]Record, error) { return nil, nil }

// Close is a no-op.
func (Discard) Close() error { return nil }
