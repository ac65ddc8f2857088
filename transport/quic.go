package transport

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/qlog"
)

// QUIC implements the Transport interface to establish connections to servers using the QUIC protocol.
// It keeps a single connection per server and opens a stream per player on it.
type QUIC struct {
	*multiplexer[quic.Connection]
}

// NewQUIC creates a new QUIC transport instance.
func NewQUIC(logger *slog.Logger) *QUIC {
	return &QUIC{multiplexer: newMultiplexer(logger, dialQUIC, openQUICStream)}
}

func dialQUIC(ctx context.Context, addr string) (quic.Connection, error) {
	return quic.DialAddr(
		ctx,
		addr,
		&tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{"lumen"},
		},
		&quic.Config{
			MaxIdleTimeout:                 time.Second * 10,
			InitialStreamReceiveWindow:     1024 * 1024 * 10,
			InitialConnectionReceiveWindow: 1024 * 1024 * 10,
			KeepAlivePeriod:                time.Second * 5,
			InitialPacketSize:              1350,
			Tracer:                         qlog.DefaultConnectionTracer,
		},
	)
}

func openQUICStream(ctx context.Context, conn quic.Connection) (io.ReadWriteCloser, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}
	return stream, nil
}
