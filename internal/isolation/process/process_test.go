package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/isolation"
)

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestLaunchAndNaturalExit(t *testing.T) {
	dir := t.TempDir()
	m := New("S-1", dir, testLogger())

	handle, err := m.LaunchExecutor(context.Background(), isolation.FrameworkInfo{
		FrameworkID: "F-1",
		ExecutorURI: "/bin/true",
	})
	if err != nil {
		t.Fatalf("LaunchExecutor: %v", err)
	}

	select {
	case exited := <-m.Exits():
		if exited.Handle != handle || exited.FrameworkID != "F-1" {
			t.Fatalf("unexpected exit event: %+v", exited)
		}
		if exited.Status.Code != 0 {
			t.Fatalf("expected clean exit, got %+v", exited.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}

	workDir := filepath.Join(dir, "slave-S-1", "fw-F-1", "executor")
	if _, err := os.Stat(workDir); err != nil {
		t.Fatalf("expected work dir to exist: %v", err)
	}
}

func TestKillExecutor(t *testing.T) {
	dir := t.TempDir()
	m := New("S-1", dir, testLogger())

	handle, err := m.launchExecutorWithArgs(isolation.FrameworkInfo{
		FrameworkID: "F-1",
		ExecutorURI: "/bin/sleep",
	}, "30")
	if err != nil {
		t.Fatalf("LaunchExecutor: %v", err)
	}
	if err := m.KillExecutor(context.Background(), handle); err != nil {
		t.Fatalf("KillExecutor: %v", err)
	}

	select {
	case exited := <-m.Exits():
		if exited.Handle != handle {
			t.Fatalf("unexpected exit event: %+v", exited)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for kill to be observed")
	}
}

func TestKillExecutorUnknownHandle(t *testing.T) {
	m := New("S-1", t.TempDir(), testLogger())
	if err := m.KillExecutor(context.Background(), isolation.Handle("nope")); err == nil {
		t.Fatal("expected error for unknown handle")
	}
}

func TestLaunchPassesExecutorEndpoint(t *testing.T) {
	dir := t.TempDir()
	m := New("S-1", dir, testLogger())

	_, err := m.launchExecutorWithArgs(isolation.FrameworkInfo{
		FrameworkID:      "F-1",
		ExecutorURI:      "/bin/sh",
		ExecutorEndpoint: "127.0.0.1:9999",
	}, "-c", "echo -n $NEXUS_EXECUTOR_ENDPOINT > endpoint.txt")
	if err != nil {
		t.Fatalf("LaunchExecutor: %v", err)
	}

	select {
	case <-m.Exits():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}

	got, err := os.ReadFile(filepath.Join(dir, "slave-S-1", "fw-F-1", "executor", "endpoint.txt"))
	if err != nil {
		t.Fatalf("reading endpoint.txt: %v", err)
	}
	if string(got) != "127.0.0.1:9999" {
		t.Fatalf("expected NEXUS_EXECUTOR_ENDPOINT to be passed through, got %q", got)
	}
}
