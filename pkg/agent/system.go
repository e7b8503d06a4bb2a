package agent

import "sync"

// System owns the root of an agent hierarchy. Master and slave processes
// each run exactly one System.
type System struct {
	name string
	root *Ref

	mu   sync.Mutex
	refs map[string]*Ref
}

// NewSystem creates an empty System identified by name (used in logging).
func NewSystem(name string) *System {
	s := &System{name: name, refs: make(map[string]*Ref)}
	s.root = newRef(s, nil, rootAddress, ActorFunc(func(*Context) error { return nil }))
	s.refs[rootAddress.String()] = s.root
	return s
}

// ActorOf spawns a top-level agent under the system's root.
func (s *System) ActorOf(id interface{}, actor Actor) *Ref {
	return s.root.spawnChild(id, actor)
}

// Get looks up a previously spawned agent by address, or nil if none exists.
func (s *System) Get(address Address) *Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[address.String()]
}

func (s *System) register(r *Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[r.address.String()] = r
}

func (s *System) unregister(r *Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, r.address.String())
}

// Stop stops the entire system, starting with the root (which recursively
// stops every descendant before its own PostStop runs).
func (s *System) Stop() error {
	return s.root.StopAndAwaitTermination()
}
