// Package transport implements the C11 transport abstraction (spec §4.11):
// a minimal send/receive/close contract the pipeline's send and receive
// threads drive (there is no separate poll operation; Recv blocks under a
// context), with a UDP implementation over net.UDPConn and an
// in-memory loopback implementation for tests and device-less demo wiring.
package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrClosed is returned by Transport operations after Close.
var ErrClosed = errors.New("transport: closed")

// Transport is the network I/O boundary the pipeline's send/receive paths
// depend on, kept narrow enough that a loopback or WASM-socket shim can
// satisfy it without dragging in OS-level socket semantics (spec §4.11:
// "device/transport back-ends are a Non-goal beyond this interface").
type Transport interface {
	// Send writes one datagram to the bound remote address.
	Send(payload []byte) error
	// Recv blocks until a datagram arrives or ctx is done (cancelled or past
	// its deadline), returning the payload (reused across calls; copy if retained).
	Recv(ctx context.Context) ([]byte, error)
	// LocalAddr reports the bound local address.
	LocalAddr() net.Addr
	Close() error
}

// UDPTransport is a thin wrapper over net.UDPConn implementing Transport.
type UDPTransport struct {
	conn       *net.UDPConn
	remote     *net.UDPAddr
	readBuf    []byte
	closed     bool
}

// DialUDP opens a UDP socket bound to localAddr (use ":0" for ephemeral)
// connected to remoteAddr.
func DialUDP(localAddr, remoteAddr string) (*UDPTransport, error) {
	local, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	remote, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", local, remote)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn, remote: remote, readBuf: make([]byte, 1500)}, nil
}

func (t *UDPTransport) Send(payload []byte) error {
	if t.closed {
		return ErrClosed
	}
	_, err := t.conn.Write(payload)
	return err
}

func (t *UDPTransport) Recv(ctx context.Context) ([]byte, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = t.conn.Read(t.readBuf)
		close(done)
	}()

	select {
	case <-ctx.Done():
		_ = t.conn.SetReadDeadline(time.Now())
		<-done
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	case <-done:
		if err != nil {
			return nil, err
		}
		return t.readBuf[:n], nil
	}
}

func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

func (t *UDPTransport) Close() error {
	t.closed = true
	return t.conn.Close()
}
