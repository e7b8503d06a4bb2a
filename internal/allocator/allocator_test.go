package allocator

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/nexus-sched/nexus/pkg/resources"
)

type fakeView struct {
	frameworks []FrameworkSnapshot
	slaves     []SlaveSnapshot
}

func (v fakeView) Frameworks() []FrameworkSnapshot { return v.frameworks }
func (v fakeView) Slaves() []SlaveSnapshot          { return v.slaves }

func TestSimpleOffersNewFrameworkAllFreeSlaves(t *testing.T) {
	view := fakeView{
		frameworks: []FrameworkSnapshot{{ID: "F-1", Held: resources.Resources{}}},
		slaves: []SlaveSnapshot{
			{ID: "S-1", Free: resources.New("cpu", 4.0, "mem", 1024.0), Order: 0},
		},
	}
	s := NewSimple()
	bundles := s.FrameworkAdded(view, view.frameworks[0])
	if len(bundles) != 1 || bundles[0].FrameworkID != "F-1" {
		t.Fatalf("expected one bundle for F-1, got %+v", bundles)
	}
	if len(bundles[0].Slaves) != 1 || bundles[0].Slaves[0].SlaveID != "S-1" {
		t.Fatalf("expected S-1 offered, got %+v", bundles[0].Slaves)
	}
	if !bundles[0].Slaves[0].Resources.Equal(view.slaves[0].Free) {
		t.Fatalf("expected entire free remainder offered, got %v", bundles[0].Slaves[0].Resources)
	}
}

func TestSimplePrefersLeastHeldFramework(t *testing.T) {
	view := fakeView{
		frameworks: []FrameworkSnapshot{
			{ID: "F-1", Held: resources.New("cpu", 8.0)},
			{ID: "F-2", Held: resources.New("cpu", 1.0)},
		},
	}
	s := NewSimple()
	bundles := s.offerOneSlave(view, "S-1", resources.New("cpu", 2.0))
	if len(bundles) != 1 || bundles[0].FrameworkID != "F-2" {
		t.Fatalf("expected offer to least-held framework F-2, got %+v", bundles)
	}
}

func TestSimpleIgnoresRemovedFrameworks(t *testing.T) {
	view := fakeView{
		frameworks: []FrameworkSnapshot{
			{ID: "F-1", Held: resources.New("cpu", 0.0), Removed: true},
			{ID: "F-2", Held: resources.New("cpu", 5.0)},
		},
	}
	s := NewSimple()
	bundles := s.offerOneSlave(view, "S-1", resources.New("cpu", 2.0))
	if len(bundles) != 1 || bundles[0].FrameworkID != "F-2" {
		t.Fatalf("expected removed framework to be skipped, got %+v", bundles)
	}
}

func TestPriorityPrefersHigherPriorityOverLessHeld(t *testing.T) {
	view := fakeView{
		frameworks: []FrameworkSnapshot{
			{ID: "F-1", Held: resources.New("cpu", 100.0), Priority: 10},
			{ID: "F-2", Held: resources.New("cpu", 0.0), Priority: 0},
		},
	}
	p := NewPriority()
	bundles := p.offerOneSlave(view, "S-1", resources.New("cpu", 2.0))
	if len(bundles) != 1 || bundles[0].FrameworkID != "F-1" {
		t.Fatalf("expected higher-priority framework F-1 to win, got %+v", bundles)
	}
}

func TestAllocatorDeterminism(t *testing.T) {
	view := fakeView{
		frameworks: []FrameworkSnapshot{
			{ID: "F-1", Held: resources.New("cpu", 2.0)},
			{ID: "F-2", Held: resources.New("cpu", 2.0)},
		},
		slaves: []SlaveSnapshot{
			{ID: "S-2", Free: resources.New("cpu", 1.0), Order: 1},
			{ID: "S-1", Free: resources.New("cpu", 2.0), Order: 0},
		},
	}
	for _, policy := range []Allocator{NewSimple(), NewPriority()} {
		a := policy.FrameworkAdded(view, view.frameworks[0])
		b := policy.FrameworkAdded(view, view.frameworks[0])
		if len(a) != len(b) {
			t.Fatalf("%T: nondeterministic bundle count: %v vs %v", policy, a, b)
		}
		for i := range a {
			if a[i].FrameworkID != b[i].FrameworkID {
				t.Fatalf("%T: nondeterministic framework assignment", policy)
			}
		}
	}
}

func TestMakeAllocatorUnknownPolicy(t *testing.T) {
	if _, err := MakeAllocator("nonexistent"); err == nil {
		t.Fatal("expected error for unknown allocator policy")
	}
}

func TestMakeAllocatorKnownPolicies(t *testing.T) {
	for _, name := range []string{"simple", "priority", ""} {
		_, err := MakeAllocator(name)
		assert.NilError(t, err, "policy %q", name)
	}
}
