// Package wire implements the length-prefixed message framing used for the
// raw master<->slave TCP transport (spec.md section 6). Each frame is a
// 4-byte big-endian length followed by a msgpack-encoded envelope; msgpack
// is promoted here from an indirect dependency of the teacher's go.mod to a
// direct one, since it is the one encoding library already present
// anywhere in the retrieved dependency graph.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single frame to guard against a misbehaving peer
// claiming an unbounded length prefix.
const MaxFrameSize = 64 << 20 // 64MiB

// Envelope is the outermost frame shape: Kind names the payload's message
// type (e.g. "RegisterFramework"), Payload is that message msgpack-encoded.
// Splitting kind from payload lets the receiver dispatch before decoding.
type Envelope struct {
	Kind    string
	Payload []byte
}

// Conn is a framed, thread-safe wrapper around a net.Conn-like
// io.ReadWriteCloser.
type Conn struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex
}

// NewConn wraps rw for framed Send/Recv.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{rw: rw, reader: bufio.NewReader(rw)}
}

// Send encodes kind and value as an Envelope and writes one frame.
func (c *Conn) Send(kind string, value interface{}) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("wire: encoding payload: %w", err)
	}
	frame, err := msgpack.Marshal(Envelope{Kind: kind, Payload: payload})
	if err != nil {
		return fmt.Errorf("wire: encoding envelope: %w", err)
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(frame), MaxFrameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	if _, err := c.rw.Write(header[:]); err != nil {
		return fmt.Errorf("wire: writing frame header: %w", err)
	}
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// Recv blocks for the next frame and returns its decoded Envelope. It is
// not safe to call Recv concurrently from multiple goroutines.
func (c *Conn) Recv() (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.reader, header[:]); err != nil {
		return Envelope{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return Envelope{}, fmt.Errorf("wire: peer frame of %d bytes exceeds max %d", size, MaxFrameSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return Envelope{}, fmt.Errorf("wire: reading frame body: %w", err)
	}
	var env Envelope
	if err := msgpack.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decoding envelope: %w", err)
	}
	return env, nil
}

// Decode unmarshals an Envelope's Payload into dst.
func (e Envelope) Decode(dst interface{}) error {
	if err := msgpack.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("wire: decoding %s payload: %w", e.Kind, err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.rw.Close() }
