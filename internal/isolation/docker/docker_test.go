package docker

import (
	"testing"

	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
)

// TestNewDoesNotDial confirms constructing a Module never talks to a
// daemon: dialing happens lazily on the first API call, so New is safe to
// call even when Docker is unavailable (e.g. in this test's CI sandbox).
func TestNewDoesNotDial(t *testing.T) {
	cl, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("client.NewClientWithOpts: %v", err)
	}
	m := New(cl, logrus.NewEntry(logrus.New()))
	if m.cl == nil {
		t.Fatal("expected client to be set")
	}
	if len(m.live) != 0 {
		t.Fatalf("expected no live containers, got %d", len(m.live))
	}
}
