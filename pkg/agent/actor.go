// Package agent provides the single-mailbox, message-loop substrate that
// both the master and the slave state machines run on (spec.md section 5):
// one goroutine per agent draining an inbox in order, with Tell (send),
// Ask (send, await reply), Spawn/Stop/AwaitTermination (spawn/wait), and
// Watch/Down standing in for the external runtime's link()/EXITED.
//
// It is grounded on the teacher's actor package (master/pkg/actor) but
// simplified to this domain: no distributed tracing, and the two child
// lifecycle messages the teacher models separately (ChildStopped,
// ChildFailed) are collapsed into a single Down message, since the core
// only ever needs to learn "the link is gone" and, optionally, why.
package agent

// Message is any payload an agent can receive.
type Message interface{}

// Lifecycle messages delivered automatically by the runtime.
type (
	// PreStart is delivered before any other message.
	PreStart struct{}

	// PostStop is delivered once, after the agent has been told to stop and
	// before its loop exits.
	PostStop struct{}

	// Down notifies a parent that a child's loop has exited, successfully
	// (Err == nil) or not. This is the Go-native equivalent of the external
	// runtime's link()-triggered EXITED event (spec.md section 6).
	Down struct {
		Child *Ref
		Err   error
	}

	// Ping round-trips through the mailbox; the runtime answers it directly,
	// letting a caller confirm every message sent before it has been
	// processed.
	Ping struct{}
)

// Actor encapsulates the behavior of one agent. Receive is invoked once per
// inbox message until it returns a non-nil error or the agent is stopped.
type Actor interface {
	Receive(ctx *Context) error
}

// ActorFunc adapts a plain function to the Actor interface.
type ActorFunc func(ctx *Context) error

// Receive implements Actor.
func (f ActorFunc) Receive(ctx *Context) error { return f(ctx) }
