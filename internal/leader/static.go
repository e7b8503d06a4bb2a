package leader

import "context"

// StaticWatcher is the single-master fallback used when spec.md section 6's
// --fault-tolerant flag is unset: this process is the leader from the
// moment it starts, forever, at a fixed epoch of 1.
type StaticWatcher struct {
	selfID string
}

// NewStaticWatcher constructs a watcher that immediately and permanently
// reports selfID as leader.
func NewStaticWatcher(selfID string) *StaticWatcher {
	return &StaticWatcher{selfID: selfID}
}

// Observe implements Watcher by emitting a single event and never closing
// the channel until ctx is canceled.
func (w *StaticWatcher) Observe(ctx context.Context) (<-chan Event, error) {
	events := make(chan Event, 1)
	events <- Event{EpochID: 1, Leader: w.selfID}
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

// Close is a no-op: StaticWatcher holds no external resources.
func (w *StaticWatcher) Close() error { return nil }
