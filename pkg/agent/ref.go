package agent

import (
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

type envelope struct {
	message Message
	sender  *Ref
	result  chan<- Message
}

type stop struct{}

// inboxSize bounds how many messages may be queued for an agent. When the
// inbox is full, Tell drops the message with a warning and Ask answers
// ErrNoResponse at once. The teacher's inbox grows without bound; this
// core instead caps it, since unlike an experiment
// tracker the master's offer cycle must never let a slow framework
// silently accumulate unbounded memory.
const inboxSize = 1024

// Ref is a live reference to a running agent. It is safe for concurrent use.
type Ref struct {
	address Address
	actor   Actor
	system  *System
	parent  *Ref
	log     *log.Entry

	inbox chan envelope

	mu       sync.Mutex
	children map[string]*Ref
	watchers []*Ref
	done     bool
	err      error
	waiters  []chan error
}

func newRef(system *System, parent *Ref, address Address, actor Actor) *Ref {
	typeName := fmt.Sprintf("%T", actor)
	r := &Ref{
		address:  address,
		actor:    actor,
		system:   system,
		parent:   parent,
		log:      log.WithField("agent", address.Local()).WithField("type", typeName),
		inbox:    make(chan envelope, inboxSize),
		children: make(map[string]*Ref),
	}
	go r.run()
	return r
}

// Address returns the agent's address.
func (r *Ref) Address() Address { return r.address }

// String implements fmt.Stringer.
func (r *Ref) String() string { return r.address.String() }

func (r *Ref) spawnChild(id interface{}, actor Actor) *Ref {
	addr := r.address.Child(id)
	r.mu.Lock()
	if existing, ok := r.children[addr.Local()]; ok {
		r.mu.Unlock()
		return existing
	}
	r.mu.Unlock()

	child := newRef(r.system, r, addr, actor)

	r.mu.Lock()
	r.children[addr.Local()] = child
	r.mu.Unlock()

	r.system.register(child)
	return child
}

func (r *Ref) child(id interface{}) *Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.children[fmt.Sprint(id)]
}

func (r *Ref) dropChild(child *Ref) {
	r.mu.Lock()
	delete(r.children, child.address.Local())
	r.mu.Unlock()
	r.system.unregister(child)
}

func (r *Ref) watch(watcher *Ref) {
	r.mu.Lock()
	if r.done {
		err := r.err
		r.mu.Unlock()
		watcher.tell(r, Down{Child: r, Err: err})
		return
	}
	r.watchers = append(r.watchers, watcher)
	r.mu.Unlock()
}

// tell delivers message fire-and-forget. It never blocks indefinitely on a
// dead recipient: sends to a stopped agent are silently dropped, matching
// the external transport's best-effort delivery contract (spec.md section 6).
func (r *Ref) tell(sender *Ref, message Message) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	select {
	case r.inbox <- envelope{message: message, sender: sender}:
	default:
		r.log.Warnf("inbox full, dropping message %T", message)
	}
}

// Tell sends message to r with no sender (used by callers outside any
// agent's Receive, e.g. from cmd/ or tests).
func (r *Ref) Tell(message Message) { r.tell(nil, message) }

func (r *Ref) ask(sender *Ref, message Message) *Response {
	result := make(chan Message, 1)
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		result <- ErrNoResponse{}
		close(result)
		return &Response{source: r, ch: result}
	}
	r.mu.Unlock()

	select {
	case r.inbox <- envelope{message: message, sender: sender, result: result}:
	default:
		result <- ErrNoResponse{}
		close(result)
	}
	return &Response{source: r, ch: result}
}

// Ask sends message to r and returns a future for the reply.
func (r *Ref) Ask(message Message) *Response { return r.ask(nil, message) }

// Stop asynchronously requests that r's loop terminate.
func (r *Ref) Stop() { r.tell(nil, stop{}) }

// AwaitTermination blocks until r's loop has exited, returning any error it
// exited with.
func (r *Ref) AwaitTermination() error {
	r.mu.Lock()
	if r.done {
		err := r.err
		r.mu.Unlock()
		return err
	}
	ch := make(chan error, 1)
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()
	return <-ch
}

// StopAndAwaitTermination stops r and waits for it to fully exit.
func (r *Ref) StopAndAwaitTermination() error {
	r.Stop()
	return r.AwaitTermination()
}

func (r *Ref) dispatch(env envelope) (exit bool) {
	ctx := &Context{message: env.message, sender: env.sender, recipient: r, result: env.result}
	defer func() {
		if ctx.result != nil && !ctx.responded {
			ctx.result <- ErrNoResponse{}
			close(ctx.result)
		}
	}()

	switch m := env.message.(type) {
	case Ping:
		ctx.Respond(m)
		return false
	case stop:
		return true
	default:
		_ = m
		// Everything else, including Down (a watched child/peer exiting),
		// is forwarded to the actor implementation.
	}

	if err := r.safeReceive(ctx); err != nil {
		r.err = err
		return true
	}
	return false
}

func (r *Ref) safeReceive(ctx *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("panic in Receive: %v\n%s", rec, debug.Stack())
			err = fmt.Errorf("agent: panic in %s: %v", r.address, rec)
		}
	}()
	return r.actor.Receive(ctx)
}

func (r *Ref) run() {
	defer r.close()
	if err := r.safeReceive(&Context{message: PreStart{}, recipient: r}); err != nil {
		r.err = err
		return
	}
	for env := range r.inbox {
		if r.dispatch(env) {
			return
		}
	}
}

func (r *Ref) close() {
	// Stop and reap children before notifying anyone we're gone, so that a
	// parent observing our Down message never sees our children outlive us
	// (spec.md section 3's "task/framework lifetimes are strictly nested").
	r.mu.Lock()
	children := make([]*Ref, 0, len(r.children))
	for _, c := range r.children {
		children = append(children, c)
	}
	r.mu.Unlock()
	for _, c := range children {
		c.Stop()
	}
	for _, c := range children {
		_ = c.AwaitTermination()
	}

	if perr := r.safeReceive(&Context{message: PostStop{}, recipient: r}); perr != nil && r.err == nil {
		r.err = perr
	}

	r.mu.Lock()
	r.done = true
	finalErr := r.err
	watchers := r.watchers
	waiters := r.waiters
	parent := r.parent
	r.mu.Unlock()

	for _, w := range watchers {
		w.tell(r, Down{Child: r, Err: finalErr})
	}
	if parent != nil {
		parent.dropChild(r)
		parent.tell(r, Down{Child: r, Err: finalErr})
	}
	for _, w := range waiters {
		w <- finalErr
		close(w)
	}
}
