package leader

import (
	"context"
	"testing"
	"time"
)

func TestStaticWatcherEmitsImmediately(t *testing.T) {
	w := NewStaticWatcher("master-1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Observe(ctx)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	select {
	case ev := <-events:
		if ev.EpochID != 1 || ev.Leader != "master-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial event")
	}
}

func TestStaticWatcherClosesOnCancel(t *testing.T) {
	w := NewStaticWatcher("master-1")
	ctx, cancel := context.WithCancel(context.Background())

	events, err := w.Observe(ctx)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	<-events // drain the initial event
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to be closed, got another event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestStaticWatcherCloseIsNoop(t *testing.T) {
	w := NewStaticWatcher("master-1")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
