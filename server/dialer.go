package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/minecraft"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/transport"
)

var (
	// ErrNoFallback is returned by DiscoverFallback when no fallback server is configured.
	ErrNoFallback = errors.New("server: no fallback server")
	// ErrDisconnected is returned when a server disconnects a player during login.
	ErrDisconnected = errors.New("server: disconnected during login")
	// ErrOnlineMode is returned when a server asks the proxy to encrypt the connection.
	ErrOnlineMode = errors.New("server: server is in online mode")
)

// Identity describes the player a connection to a server is made for.
type Identity struct {
	auth.Profile
	// VirtualHost is the cleaned host the player connected with.
	VirtualHost string
	// RemoteAddr is the address of the player.
	RemoteAddr net.Addr
	Version    *protocol.Version
}

type Dialer struct {
	Transport transport.Transport
	// Forwarding appends the address, UUID and properties of the player to the host of the
	// handshake, as understood by servers behind BungeeCord.
	Forwarding bool
	Config     minecraft.Config
	Logger     *slog.Logger
}

// Dial connects to the server at addr and logs the player in. The connection returned is in the
// play state.
func (d Dialer) Dial(ctx context.Context, addr string, identity *Identity) (*Conn, error) {
	tr := d.Transport
	if tr == nil {
		tr = transport.NewTCP()
	}
	rwc, err := tr.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	config := d.Config
	config.Direction = protocol.Clientbound
	if d.Logger != nil {
		config.Logger = d.Logger
	}
	c := &Conn{Conn: minecraft.NewConn(rwc, config), addr: addr}
	if err := c.login(ctx, d.handshakeHost(addr, identity), d.port(addr), identity); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (d Dialer) handshakeHost(addr string, identity *Identity) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if !d.Forwarding {
		return host
	}
	return ForwardingAddress(host, identity)
}

func (d Dialer) port(addr string) uint16 {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 25565
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 25565
	}
	return uint16(p)
}
