package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// muxConnection is a connection multiplexing many streams, such as a QUIC or Spectral connection.
type muxConnection interface {
	Context() context.Context
}

// multiplexer keeps a single connection per server and opens one stream on it per player, which
// avoids a full handshake for every player joining the same server.
type multiplexer[C muxConnection] struct {
	connections map[string]C
	logger      *slog.Logger
	mu          sync.Mutex

	dial func(ctx context.Context, addr string) (C, error)
	open func(ctx context.Context, conn C) (io.ReadWriteCloser, error)
}

func newMultiplexer[C muxConnection](logger *slog.Logger, dial func(context.Context, string) (C, error), open func(context.Context, C) (io.ReadWriteCloser, error)) *multiplexer[C] {
	return &multiplexer[C]{
		connections: make(map[string]C),
		logger:      logger,
		dial:        dial,
		open:        open,
	}
}

// Dial opens a stream to addr, dialing a new connection if none is open yet.
func (m *multiplexer[C]) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[addr]
	if !ok {
		c, err := m.dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		conn = c
		m.connections[addr] = conn
		m.logger.Debug("established connection", "addr", addr)
		go m.watch(addr, conn)
	}
	return m.open(ctx, conn)
}

func (m *multiplexer[C]) watch(addr string, conn C) {
	<-conn.Context().Done()
	m.mu.Lock()
	delete(m.connections, addr)
	m.mu.Unlock()
	if err := context.Cause(conn.Context()); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("closed connection", "addr", addr, "err", err)
	} else {
		m.logger.Debug("closed connection", "addr", addr)
	}
}

// count returns the amount of open connections.
func (m *multiplexer[C]) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}
