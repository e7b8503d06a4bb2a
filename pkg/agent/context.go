package agent

import (
	log "github.com/sirupsen/logrus"
)

// Context carries the current message plus everything a Receive
// implementation needs to act on it: who sent it, who to reply to, and
// how to spawn or message other agents.
type Context struct {
	message   Message
	sender    *Ref
	recipient *Ref
	result    chan<- Message
	responded bool
}

// Message returns the message currently being processed.
func (c *Context) Message() Message { return c.message }

// Sender returns the agent that sent the current message, or nil if it
// was sent by the runtime itself (e.g. PreStart).
func (c *Context) Sender() *Ref { return c.sender }

// Self returns the agent processing the current message.
func (c *Context) Self() *Ref { return c.recipient }

// Log returns the recipient's structured logger.
func (c *Context) Log() *log.Entry { return c.recipient.log }

// Tell sends message to other, fire-and-forget, with this agent as sender.
func (c *Context) Tell(other *Ref, message Message) {
	other.tell(c.recipient, message)
}

// Ask sends message to other and returns a future for its reply.
func (c *Context) Ask(other *Ref, message Message) *Response {
	return other.ask(c.recipient, message)
}

// ExpectingResponse reports whether the sender used Ask and is still
// waiting for a reply.
func (c *Context) ExpectingResponse() bool {
	return c.result != nil && !c.responded
}

// Respond answers the sender's Ask. It panics if the sender used Tell.
func (c *Context) Respond(message Message) {
	if c.result == nil {
		panic("agent: Respond called but sender did not Ask")
	}
	if c.responded {
		return
	}
	c.responded = true
	c.result <- message
	close(c.result)
}

// ActorOf spawns a child of the recipient under the given local id. If a
// child already exists under that id, it is returned unchanged.
func (c *Context) ActorOf(id interface{}, actor Actor) *Ref {
	return c.recipient.spawnChild(id, actor)
}

// Child looks up an existing child by local id.
func (c *Context) Child(id interface{}) *Ref {
	return c.recipient.child(id)
}

// Watch arranges for the recipient to receive a Down message when other's
// loop exits, the Go-native equivalent of the external runtime's link().
func (c *Context) Watch(other *Ref) {
	other.watch(c.recipient)
}
