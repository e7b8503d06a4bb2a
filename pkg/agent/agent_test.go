package agent

import (
	"testing"
	"time"
)

type echoActor struct {
	received chan Message
}

func (e *echoActor) Receive(ctx *Context) error {
	switch m := ctx.Message().(type) {
	case string:
		e.received <- m
		if ctx.ExpectingResponse() {
			ctx.Respond("got:" + m)
		}
	}
	return nil
}

func TestTellAndAsk(t *testing.T) {
	sys := NewSystem("test")
	defer sys.Stop()

	actor := &echoActor{received: make(chan Message, 4)}
	ref := sys.ActorOf("echo", actor)

	ref.Tell("hello")
	select {
	case m := <-actor.received:
		if m != "hello" {
			t.Fatalf("expected hello, got %v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Tell delivery")
	}

	resp := ref.Ask("world")
	if got := resp.Get(); got != "got:world" {
		t.Fatalf("expected got:world, got %v", got)
	}
}

type parentActor struct {
	downs chan Down
}

func (p *parentActor) Receive(ctx *Context) error {
	switch m := ctx.Message().(type) {
	case PreStart:
		child := ctx.ActorOf("child", ActorFunc(func(cctx *Context) error {
			if _, ok := cctx.Message().(string); ok {
				return errFail{}
			}
			return nil
		}))
		ctx.Watch(child)
		ctx.Tell(child, "boom")
	case Down:
		p.downs <- m
	}
	return nil
}

type errFail struct{}

func (errFail) Error() string { return "boom" }

func TestDownOnChildFailure(t *testing.T) {
	sys := NewSystem("test")
	defer sys.Stop()

	parent := &parentActor{downs: make(chan Down, 1)}
	sys.ActorOf("parent", parent)

	select {
	case d := <-parent.downs:
		if d.Err == nil {
			t.Fatal("expected child failure to be reported")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Down")
	}
}

func TestAskOnStoppedAgentReturnsErrNoResponse(t *testing.T) {
	sys := NewSystem("test")
	defer sys.Stop()

	ref := sys.ActorOf("noop", ActorFunc(func(*Context) error { return nil }))
	if err := ref.StopAndAwaitTermination(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	resp := ref.Ask("anything")
	if _, ok := resp.Get().(ErrNoResponse); !ok {
		t.Fatalf("expected ErrNoResponse, got %v", resp.Get())
	}
}
