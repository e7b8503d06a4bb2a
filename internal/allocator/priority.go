package allocator

import (
	"sort"

	"github.com/nexus-sched/nexus/pkg/resources"
)

// Priority answers the "allocator policy beyond simple" open question
// (spec.md section 9): frameworks carry a priority tag (default 0, higher
// drains resources first); within a priority tier, Simple's
// held-resources/lexical-id ordering applies. It is grounded on
// agentrm/priority.go's priority-bucket sorting, stripped of preemption,
// which spec.md's Non-goals exclude ("no cross-framework preemption").
// internal/master builds every FrameworkSnapshot with Priority 0, so under
// the master all frameworks share one tier; only callers that fill in
// Priority themselves see more than one.
type Priority struct{}

// NewPriority constructs the priority policy.
func NewPriority() *Priority { return &Priority{} }

func byPriorityThenHeld(frameworks []FrameworkSnapshot) []FrameworkSnapshot {
	candidates := make([]FrameworkSnapshot, 0, len(frameworks))
	for _, f := range frameworks {
		if !f.Removed {
			candidates = append(candidates, f)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority // higher first
		}
		si, sj := candidates[i].Held.Sum(), candidates[j].Held.Sum()
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates
}

func (p *Priority) highestPriority(frameworks []FrameworkSnapshot) (FrameworkSnapshot, bool) {
	ordered := byPriorityThenHeld(frameworks)
	if len(ordered) == 0 {
		return FrameworkSnapshot{}, false
	}
	return ordered[0], true
}

// FrameworkAdded offers the new framework every free slave, same as Simple,
// but only when the new framework ranks first by priority, then held
// resources, then id; otherwise it returns nil and the new framework waits
// for a later callback like any other candidate.
func (p *Priority) FrameworkAdded(view ClusterView, framework FrameworkSnapshot) []Bundle {
	top, ok := p.highestPriority(view.Frameworks())
	if !ok || top.ID != framework.ID {
		return nil
	}
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

// FrameworkRemoved is bookkeeping only; see Simple.FrameworkRemoved.
func (p *Priority) FrameworkRemoved(view ClusterView, framework FrameworkSnapshot) []Bundle {
	return nil
}

// SlaveAdded offers the new slave's free remainder to the highest-priority
// framework currently registered.
func (p *Priority) SlaveAdded(view ClusterView, slave SlaveSnapshot) []Bundle {
	return p.offerOneSlave(view, slave.ID, slave.Free)
}

// SlaveRemoved is bookkeeping only.
func (p *Priority) SlaveRemoved(view ClusterView, slave SlaveSnapshot) {}

// ResourcesUnused re-offers declined resources to the highest-priority
// framework.
func (p *Priority) ResourcesUnused(
	view ClusterView, frameworkID, slaveID string, unused resources.Resources,
) []Bundle {
	if unused.IsZero() {
		return nil
	}
	return p.offerOneSlave(view, slaveID, unused)
}

// ResourcesRecovered re-offers resources freed by a terminated task.
func (p *Priority) ResourcesRecovered(
	view ClusterView, frameworkID, slaveID string, recovered resources.Resources,
) []Bundle {
	if recovered.IsZero() {
		return nil
	}
	return p.offerOneSlave(view, slaveID, recovered)
}

func (p *Priority) offerOneSlave(view ClusterView, slaveID string, amount resources.Resources) []Bundle {
	target, ok := p.highestPriority(view.Frameworks())
	if !ok {
		return nil
	}
	return []Bundle{{
		FrameworkID: target.ID,
		Slaves:      []SlaveResources{{SlaveID: slaveID, Resources: amount}},
	}}
}
