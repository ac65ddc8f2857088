package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// TCP implements the Transport interface to establish connections to servers using the TCP protocol.
type TCP struct {
	dialer net.Dialer
}

// NewTCP creates a new TCP transport instance.
func NewTCP() *TCP {
	return &TCP{dialer: net.Dialer{Timeout: time.Second * 10}}
}

// Dial ...
func (t *TCP) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		ConfigureTCP(tcpConn)
	}
	return conn, nil
}

// ConfigureTCP applies the socket options used for every player connection, accepted or dialed.
func ConfigureTCP(conn *net.TCPConn) {
	_ = conn.SetNoDelay(true)
	_ = conn.SetLinger(0)
	_ = conn.SetReadBuffer(1024 * 1024 * 8)
	_ = conn.SetWriteBuffer(1024 * 1024 * 8)
}
