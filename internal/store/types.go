package store

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/fingerprint"
	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// #region entry
// Entry is the cached insight for one bucket together with the fingerprint of
// the task snapshot that produced it.
type Entry struct {
	Insight     insight.Insight   `json:"insight"`
	Fingerprint fingerprint.Value `json:"fingerprint"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Fresh reports whether the entry was produced from a snapshot with fingerprint f.
func (e Entry) Fresh(f fingerprint.Value) bool {
	return e.Fingerprint == f
}
// #endregion entry

// #region interfaces
// Store is the insight cache: at most one entry per bucket.
//
// Get never mutates. Put replaces any prior entry for the bucket as a whole;
// concurrent readers see either the old entry or the new one, never a mix.
type Store interface {
	Get(ctx context.Context, b horizon.Bucket) (Entry, bool, error)
	Put(ctx context.Context, b horizon.Bucket, e Entry) error
}

// Backend is a Store with a lifecycle, as returned by Open.
type Backend interface {
	Store
	List(ctx context.Context) (map[horizon.Bucket]Entry, error)
	Close() error
}
// #endregion interfaces
