package transport

import (
	"context"
	"io"
	"log/slog"

	"github.com/cooldogedev/spectral"
)

// Spectral implements the Transport interface to establish connections to servers using Spectral.
// Like QUIC, it keeps a single connection per server and opens a stream per player on it.
type Spectral struct {
	*multiplexer[spectral.Connection]
}

// NewSpectral creates a new Spectral transport instance.
func NewSpectral(logger *slog.Logger) *Spectral {
	return &Spectral{multiplexer: newMultiplexer(logger, dialSpectral, openSpectralStream)}
}

func dialSpectral(ctx context.Context, addr string) (spectral.Connection, error) {
	return spectral.Dial(ctx, addr)
}

func openSpectralStream(ctx context.Context, conn spectral.Connection) (io.ReadWriteCloser, error) {
	stream, err := conn.OpenStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}
	return stream, nil
}
