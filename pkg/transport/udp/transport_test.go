package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtbridge/pkg/transport"
)

func newPeer(t *testing.T) *net.UDPConn {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTransport(t *testing.T, peer *net.UDPConn) *Transport {
	conf := NewConfig()
	conf.Listen = "127.0.0.1:0"
	conf.Peer = peer.LocalAddr().String()
	conf.RetryInterval = 10 * time.Millisecond
	tr, err := conf.New()
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestNotReadyBeforeOpen(t *testing.T) {
	tr := newTransport(t, newPeer(t))
	require.False(t, tr.Ready())
	require.Equal(t, transport.ErrNotReady, tr.TrySend([]byte{1}))
	_, err := tr.TryReceive(make([]byte, 8))
	require.Equal(t, transport.ErrNotReady, err)
}

func TestExchange(t *testing.T) {
	peer := newPeer(t)
	tr := newTransport(t, peer)
	require.NoError(t, tr.Open())
	require.True(t, tr.Ready())

	buf := make([]byte, 64)
	_, err := tr.TryReceive(buf)
	require.Equal(t, transport.ErrWouldBlock, err)

	require.NoError(t, tr.TrySend([]byte{1, 2, 3}))
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	n, from, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buf[:n])
	require.Equal(t, tr.LocalAddr().String(), from.String())

	_, err = peer.WriteToUDP([]byte{4, 5, 6, 7, 8, 9, 10, 11, 12}, from)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err = tr.TryReceive(buf)
		return err == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, []byte{4, 5, 6, 7, 8, 9, 10, 11, 12}, buf[:n])
}

func TestTruncatedReceive(t *testing.T) {
	peer := newPeer(t)
	tr := newTransport(t, peer)
	require.NoError(t, tr.Open())
	_, err := peer.WriteTo(make([]byte, 100), tr.LocalAddr())
	require.NoError(t, err)
	buf := make([]byte, 64)
	var n int
	require.Eventually(t, func() bool {
		n, err = tr.TryReceive(buf)
		return err == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, 64, n)
}

func TestRunBindsAndCloses(t *testing.T) {
	tr := newTransport(t, newPeer(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	require.Eventually(t, tr.Ready, time.Second, time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.False(t, tr.Ready())
}

func TestRunRetriesBind(t *testing.T) {
	blocker := newPeer(t)
	conf := NewConfig()
	conf.Listen = blocker.LocalAddr().String()
	conf.Peer = "127.0.0.1:9"
	conf.RetryInterval = 5 * time.Millisecond
	tr, err := conf.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	require.False(t, tr.Ready())

	blocker.Close()
	require.Eventually(t, tr.Ready, time.Second, time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestInvalidConfig(t *testing.T) {
	conf := NewConfig()
	conf.Peer = "not an address"
	_, err := conf.New()
	require.Error(t, err)
}
