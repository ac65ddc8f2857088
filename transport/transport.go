package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Transport defines an interface for establishing connections to backend servers.
type Transport interface {
	// Dial connects to the specified address and returns an io.ReadWriteCloser carrying the byte
	// stream of a single player. It returns an error if the connection cannot be established.
	Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error)
}

// ByName returns the transport with the name passed: "tcp", "quic", "kcp" or "spectral".
func ByName(name string, logger *slog.Logger) (Transport, error) {
	switch name {
	case "", "tcp":
		return NewTCP(), nil
	case "quic":
		return NewQUIC(logger), nil
	case "kcp":
		return NewKCP(logger), nil
	case "spectral":
		return NewSpectral(logger), nil
	}
	return nil, fmt.Errorf("unknown transport %q", name)
}
