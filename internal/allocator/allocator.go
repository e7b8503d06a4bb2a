// Package allocator implements the pluggable resource-offer policy (C4):
// a small, replaceable component that maps free resources and framework
// demand to offer bundles. The master drives it through six callbacks
// (spec.md section 4.1); this package never talks to the network or to the
// isolation layer, which is what keeps it swappable and unit-testable.
package allocator

import (
	"fmt"
	"sort"

	"github.com/nexus-sched/nexus/pkg/resources"
)

// FrameworkSnapshot is the allocator's read-only view of one framework.
type FrameworkSnapshot struct {
	ID       string
	Held     resources.Resources // sum of resources used by its running tasks
	Priority int                 // higher schedules first under the priority policy
	Removed  bool
}

// SlaveSnapshot is the allocator's read-only view of one slave.
type SlaveSnapshot struct {
	ID    string
	Free  resources.Resources // total - used - already offered
	Order int                 // registration order; both policies walk slaves in ascending Order
}

// SlaveResources names the resources a bundle offers on one slave.
type SlaveResources struct {
	SlaveID   string
	Resources resources.Resources
}

// Bundle is one offer the allocator wants the master to issue: some
// resources, on one or more slaves, to one framework.
type Bundle struct {
	FrameworkID string
	Slaves      []SlaveResources
}

// ClusterView is the read-only snapshot the master hands the allocator on
// every callback. Implementations must never be mutated concurrently with
// a callback in flight; the master achieves this by only ever calling the
// allocator from its own message loop (spec.md section 5).
type ClusterView interface {
	Frameworks() []FrameworkSnapshot
	Slaves() []SlaveSnapshot
}

// Allocator is the policy contract spec.md section 4.1 describes.
type Allocator interface {
	FrameworkAdded(view ClusterView, framework FrameworkSnapshot) []Bundle
	FrameworkRemoved(view ClusterView, framework FrameworkSnapshot) []Bundle
	SlaveAdded(view ClusterView, slave SlaveSnapshot) []Bundle
	SlaveRemoved(view ClusterView, slave SlaveSnapshot)
	ResourcesUnused(view ClusterView, frameworkID, slaveID string, unused resources.Resources) []Bundle
	ResourcesRecovered(view ClusterView, frameworkID, slaveID string, recovered resources.Resources) []Bundle
}

// MakeAllocator resolves a policy by the name carried in the "allocator"
// configuration input (spec.md section 6), mirroring the teacher's
// MakeScheduler(conf) switch-by-name idiom (agentrm.MakeScheduler).
func MakeAllocator(name string) (Allocator, error) {
	switch name {
	case "simple", "":
		return NewSimple(), nil
	case "priority":
		return NewPriority(), nil
	default:
		return nil, fmt.Errorf("allocator: unknown policy %q", name)
	}
}

// sortedSlaves returns slaves in registration order, the simple policy's
// iteration order, breaking remaining ties lexically by id.
func sortedSlaves(slaves []SlaveSnapshot) []SlaveSnapshot {
	out := append([]SlaveSnapshot(nil), slaves...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}
