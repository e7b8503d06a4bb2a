package allocator

import (
	"sort"

	"github.com/nexus-sched/nexus/pkg/resources"
)

// Simple is the spec's default policy (spec.md section 4.1): frameworks are
// ranked ascending by total currently-held resources, slaves are walked in
// registration order, and the selected framework receives a slave's entire
// free remainder in one shot. It is grounded on the teacher's round-robin
// and fair-share schedulers' "sort candidates, walk greedily" shape
// (agentrm/round_robin.go, agentrm/fair_share.go), simplified to the exact
// greedy algorithm the spec names instead of their dominant-resource-share
// bookkeeping.
//
// Simple is stateless: every callback is a pure function of the ClusterView
// it's given, which is what makes it trivially deterministic (spec.md
// section 8, property 7).
type Simple struct{}

// NewSimple constructs the simple policy.
func NewSimple() *Simple { return &Simple{} }

// leastHeld returns the non-removed framework with the smallest Held.Sum(),
// breaking ties lexically by id, or false if there are none.
func leastHeld(frameworks []FrameworkSnapshot) (FrameworkSnapshot, bool) {
	candidates := make([]FrameworkSnapshot, 0, len(frameworks))
	for _, f := range frameworks {
		if !f.Removed {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return FrameworkSnapshot{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].Held.Sum(), candidates[j].Held.Sum()
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}

// FrameworkAdded offers the new framework every slave's entire free
// remainder, since a newly added framework holds nothing and so sorts
// first among all frameworks.
func (s *Simple) FrameworkAdded(view ClusterView, framework FrameworkSnapshot) []Bundle {
	var slaves []SlaveResources
	for _, sl := range sortedSlaves(view.Slaves()) {
		if sl.Free.IsZero() {
			continue
		}
		slaves = append(slaves, SlaveResources{SlaveID: sl.ID, Resources: sl.Free})
	}
	if len(slaves) == 0 {
		return nil
	}
	return []Bundle{{FrameworkID: framework.ID, Slaves: slaves}}
}

// FrameworkRemoved is bookkeeping only: Simple carries no per-framework
// state and returns no bundles. The master frees the removed framework's
// task resources itself, without a ResourcesRecovered call per task.
func (s *Simple) FrameworkRemoved(view ClusterView, framework FrameworkSnapshot) []Bundle {
	return nil
}

// SlaveAdded offers the new slave's entire free remainder to whichever
// non-removed framework currently holds the least.
func (s *Simple) SlaveAdded(view ClusterView, slave SlaveSnapshot) []Bundle {
	return s.offerOneSlave(view, slave.ID, slave.Free)
}

// SlaveRemoved is bookkeeping only; the master is solely responsible for
// invalidating outstanding offers on a removed slave.
func (s *Simple) SlaveRemoved(view ClusterView, slave SlaveSnapshot) {}

// ResourcesUnused re-offers declined resources, possibly to a different
// framework than the one that declined them (spec.md section 8, S3).
func (s *Simple) ResourcesUnused(
	view ClusterView, frameworkID, slaveID string, unused resources.Resources,
) []Bundle {
	if unused.IsZero() {
		return nil
	}
	return s.offerOneSlave(view, slaveID, unused)
}

// ResourcesRecovered re-offers resources freed by a terminated task.
func (s *Simple) ResourcesRecovered(
	view ClusterView, frameworkID, slaveID string, recovered resources.Resources,
) []Bundle {
	if recovered.IsZero() {
		return nil
	}
	return s.offerOneSlave(view, slaveID, recovered)
}

func (s *Simple) offerOneSlave(view ClusterView, slaveID string, amount resources.Resources) []Bundle {
	target, ok := leastHeld(view.Frameworks())
	if !ok {
		return nil
	}
	return []Bundle{{
		FrameworkID: target.ID,
		Slaves:      []SlaveResources{{SlaveID: slaveID, Resources: amount}},
	}}
}
