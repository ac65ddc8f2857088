package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	conn, err := NewTCP().Dial(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestByName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for name, want := range map[string]any{
		"":         &TCP{},
		"tcp":      &TCP{},
		"quic":     &QUIC{},
		"kcp":      &KCP{},
		"spectral": &Spectral{},
	} {
		tr, err := ByName(name, logger)
		require.NoError(t, err, name)
		assert.IsType(t, want, tr, name)
	}

	_, err := ByName("raknet", logger)
	assert.Error(t, err)
}

type fakeConnection struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (f *fakeConnection) Context() context.Context {
	return f.ctx
}

type nopStream struct{}

func (nopStream) Read([]byte) (int, error) { return 0, io.EOF }
func (nopStream) Write(b []byte) (int, error) { return len(b), nil }
func (nopStream) Close() error { return nil }

func TestMultiplexerReusesConnections(t *testing.T) {
	dials := 0
	var last *fakeConnection
	m := newMultiplexer(slog.New(slog.NewTextHandler(io.Discard, nil)),
		func(context.Context, string) (*fakeConnection, error) {
			dials++
			ctx, cancel := context.WithCancel(context.Background())
			last = &fakeConnection{ctx: ctx, cancel: cancel}
			return last, nil
		},
		func(context.Context, *fakeConnection) (io.ReadWriteCloser, error) {
			return nopStream{}, nil
		},
	)

	for i := 0; i < 3; i++ {
		_, err := m.Dial(context.Background(), "backend:25565")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dials)
	assert.Equal(t, 1, m.count())

	last.cancel()
	assert.Eventually(t, func() bool { return m.count() == 0 }, time.Second, time.Millisecond*10)

	_, err := m.Dial(context.Background(), "backend:25565")
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}
