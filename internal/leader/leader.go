// Package leader watches for master leadership changes and emits a
// monotonic stream of (epoch, identity) events (spec.md section 4.5 / C3).
// The etcd-backed implementation is grounded on hanfei1991-microcosm's
// EtcdElection (master/cluster/election.go): campaign under a session lease,
// re-campaign on transient etcd compaction errors, and treat the election
// key's creation revision as the epoch counter spec.md section 2 requires
// ("epochs only ever increase"). A StaticWatcher fallback covers the
// --fault-tolerant="" single-master mode from spec.md section 6.
package leader

import (
	"context"
)

// Event reports a new leader taking over at a new epoch. EpochID is strictly
// increasing across events observed by a single Watcher.
type Event struct {
	EpochID int64
	Leader  string
}

// Watcher is the leader-observation contract used by the master and slave.
type Watcher interface {
	// Observe starts watching and returns a channel of leadership events.
	// The channel is closed when ctx is canceled or the watcher fails
	// unrecoverably; callers should treat a close as "leadership unknown."
	Observe(ctx context.Context) (<-chan Event, error)

	// Close releases any held session/lease. Safe to call multiple times.
	Close() error
}
