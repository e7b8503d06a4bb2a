package wire

import (
	"net"
	"testing"
	"time"
)

type registerFramework struct {
	Name string
	User string
}

func TestSendRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientConn := NewConn(client)
	serverConn := NewConn(server)

	done := make(chan error, 1)
	go func() {
		done <- clientConn.Send("RegisterFramework", registerFramework{Name: "spark", User: "alice"})
	}()

	env, err := serverConn.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if env.Kind != "RegisterFramework" {
		t.Fatalf("unexpected kind: %s", env.Kind)
	}
	var msg registerFramework
	if err := env.Decode(&msg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Name != "spark" || msg.User != "alice" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
}

func TestRecvEOFOnClose(t *testing.T) {
	client, server := net.Pipe()
	clientConn := NewConn(client)
	serverConn := NewConn(server)
	_ = clientConn.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := serverConn.Recv()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error after peer closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv to observe closed connection")
	}
}

func TestFrameTooLargeRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConn(client)
	big := make([]byte, MaxFrameSize+1)
	err := conn.Send("Oversized", big)
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
	_ = server
}
