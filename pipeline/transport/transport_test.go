package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopbackPairDeliversPayload(t *testing.T) {
	a, b := NewLoopbackPair(4)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestLoopbackRecvRespectsContextCancellation(t *testing.T) {
	a, b := NewLoopbackPair(4)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Recv(ctx)
	require.Error(t, err)
}

func TestLoopbackSendAfterCloseFails(t *testing.T) {
	a, b := NewLoopbackPair(4)
	b.Close()
	a.Close()
	err := a.Send([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestUDPTransportRoundTrip(t *testing.T) {
	serverAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	serverConn, err := net.ListenUDP("udp", serverAddr)
	require.NoError(t, err)
	defer serverConn.Close()

	client, err := DialUDP("127.0.0.1:0", serverConn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send([]byte("ping")))

	buf := make([]byte, 1500)
	serverConn.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := serverConn.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}
