package noop

import (
	"context"
	"testing"

	"github.com/nexus-sched/nexus/internal/isolation"
)

func TestLaunchAndKill(t *testing.T) {
	m := New(false)
	handle, err := m.LaunchExecutor(context.Background(), isolation.FrameworkInfo{FrameworkID: "F-1"})
	if err != nil {
		t.Fatalf("LaunchExecutor: %v", err)
	}
	if err := m.KillExecutor(context.Background(), handle); err != nil {
		t.Fatalf("KillExecutor: %v", err)
	}
	exited := <-m.Exits()
	if exited.Handle != handle || exited.FrameworkID != "F-1" {
		t.Fatalf("unexpected exit: %+v", exited)
	}
}

func TestLaunchFailure(t *testing.T) {
	m := New(true)
	if _, err := m.LaunchExecutor(context.Background(), isolation.FrameworkInfo{FrameworkID: "F-1"}); err == nil {
		t.Fatal("expected launch to fail")
	}
}

func TestKillUnknownHandle(t *testing.T) {
	m := New(false)
	if err := m.KillExecutor(context.Background(), isolation.Handle("nope")); err == nil {
		t.Fatal("expected error for unknown handle")
	}
}

func TestSimulateCrash(t *testing.T) {
	m := New(false)
	handle, err := m.LaunchExecutor(context.Background(), isolation.FrameworkInfo{FrameworkID: "F-1"})
	if err != nil {
		t.Fatalf("LaunchExecutor: %v", err)
	}
	m.SimulateCrash(handle, isolation.ExitStatus{Code: 137, Message: "oom"})
	exited := <-m.Exits()
	if exited.Status.Code != 137 {
		t.Fatalf("unexpected status: %+v", exited.Status)
	}
}
