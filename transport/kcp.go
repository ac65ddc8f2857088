package transport

import (
	"context"
	"io"
	"log/slog"

	"github.com/xtaci/kcp-go"
)

const (
	kcpDataShards   = 10
	kcpParityShards = 3
)

// KCP dials servers over KCP sessions in stream mode, one session per player.
type KCP struct {
	logger *slog.Logger
}

// NewKCP creates a new KCP transport instance.
func NewKCP(logger *slog.Logger) *KCP {
	return &KCP{logger: logger}
}

// Dial ...
func (k *KCP) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := kcp.DialWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	// Frames must arrive as a byte stream, not as individual messages.
	conn.SetStreamMode(true)
	conn.SetNoDelay(1, 10, 2, 1)
	conn.SetWindowSize(1024, 1024)
	k.logger.Debug("established kcp session", "addr", addr, "conv", conn.GetConv())
	return conn, nil
}
