package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/compression"
	"github.com/cooldogedev/lumen/metrics"
	"github.com/cooldogedev/lumen/minecraft"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/protocol/packet"
	"github.com/cooldogedev/lumen/server"
	"github.com/cooldogedev/lumen/util"
)

// dialTimeout bounds connecting to and logging in with a server.
const dialTimeout = time.Second * 10

// Config holds the collaborators shared by every session of a proxy.
type Config struct {
	Opts      *util.Opts
	Policy    *protocol.VersionPolicy
	Status    *util.StatusProvider
	Discovery server.Discovery
	Dialer    server.Dialer
	// Authenticator and Keys enable online mode. Players are not authenticated if either is nil.
	Authenticator auth.Authenticator
	Keys          *auth.KeyPair
	Registry      *Registry
	Logger        *slog.Logger
}

// stateHandler handles the packets read from a client in a single state. Packets are dispatched to
// it through the packet capability interfaces it implements.
type stateHandler interface {
	// unhandled is called with every packet not consumed by the capability interfaces. A non-nil
	// error terminates the session.
	unhandled(pk packet.Packet) error
}

// Session is the connection of a single client to the proxy, and once logged in, to its server.
type Session struct {
	conn   *minecraft.Conn
	config Config
	logger *slog.Logger

	handler stateHandler
	vhost   string
	profile auth.Profile

	serverConn *server.Conn
	serverMu   sync.RWMutex

	processor   Processor
	processorMu sync.RWMutex
	tracker     *Tracker

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewSession creates a session for a client connection in the handshake state.
func NewSession(conn *minecraft.Conn, config Config) *Session {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	if config.Opts == nil {
		config.Opts = util.DefaultOpts()
	}
	if config.Status == nil {
		config.Status = util.NewStatusProvider(config.Opts.Motd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:   conn,
		config: config,
		logger: config.Logger.With("addr", addrString(conn.RemoteAddr())),

		processor: NopProcessor{},
		tracker:   NewTracker(),

		ctx:    ctx,
		cancel: cancel,
	}
	s.handler = &handshakeHandler{s: s}
	return s
}

// Serve reads packets from the client until the session is closed. It closes the session before
// returning.
func (s *Session) Serve() {
	defer s.Close()
	for {
		pk, err := s.conn.ReadPacket()
		if err != nil {
			s.fail(err)
			return
		}
		if pk.Handle(s.handler) {
			continue
		}
		if err := s.handler.unhandled(pk); err != nil {
			s.fail(err)
			return
		}
	}
}

// fail terminates the session after an error. Protocol errors are reported to the client with a
// Disconnect on a best-effort basis.
func (s *Session) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, minecraft.ErrClosed) {
		s.logger.Debug("client closed connection", "err", err)
		s.Close()
		return
	}
	if isProtocolError(err) {
		state := s.conn.State()
		metrics.RecordProtocolError(state.String())
		s.logger.Warn("closing connection after protocol error", "state", state, "err", err)
		s.Disconnect("A protocol error occurred: " + err.Error())
		return
	}
	s.logger.Error("failed to serve connection", "err", err)
	s.Close()
}

func isProtocolError(err error) bool {
	for _, target := range []error{
		protocol.ErrMalformed,
		protocol.ErrFrameTooLarge,
		protocol.ErrProtocolViolation,
		protocol.ErrUnsupportedVersion,
		protocol.ErrIllegalTransition,
		compression.ErrDataFormat,
		compression.ErrTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// transition moves the client connection to the version and state passed.
func (s *Session) transition(version *protocol.Version, state protocol.State) error {
	if err := s.conn.SetVersion(version); err != nil {
		return err
	}
	return s.conn.SetState(state)
}

// Conn returns the connection of the client.
func (s *Session) Conn() *minecraft.Conn {
	return s.conn
}

// Server returns the connection to the server of the player, or nil before the login completed.
func (s *Session) Server() *server.Conn {
	s.serverMu.RLock()
	defer s.serverMu.RUnlock()
	return s.serverConn
}

func (s *Session) setServer(conn *server.Conn) {
	s.serverMu.Lock()
	defer s.serverMu.Unlock()
	s.serverConn = conn
}

// Profile returns the profile of the player. It is empty before the login completed.
func (s *Session) Profile() auth.Profile {
	return s.profile
}

// VirtualHost returns the cleaned host the client connected with.
func (s *Session) VirtualHost() string {
	return s.vhost
}

// Tracker ...
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Processor ...
func (s *Session) Processor() Processor {
	s.processorMu.RLock()
	defer s.processorMu.RUnlock()
	return s.processor
}

// SetProcessor sets the processor of relayed packets. A nil processor relays every packet.
func (s *Session) SetProcessor(processor Processor) {
	if processor == nil {
		processor = NopProcessor{}
	}
	s.processorMu.Lock()
	defer s.processorMu.Unlock()
	s.processor = processor
}

// Context returns a context cancelled once the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// SendHeaderAndFooter sets the header and footer of the player list of the client. Both are JSON
// text components.
func (s *Session) SendHeaderAndFooter(header, footer string) error {
	if state := s.conn.State(); state != protocol.StatePlay {
		return fmt.Errorf("%w: player list cannot be set in the %s state", protocol.ErrIllegalTransition, state)
	}
	return s.conn.WritePacket(&packet.HeaderAndFooter{Header: header, Footer: footer})
}

// ResetHeaderAndFooter clears the header and footer of the player list of the client.
func (s *Session) ResetHeaderAndFooter() error {
	pk := packet.ResetHeaderAndFooter()
	return s.SendHeaderAndFooter(pk.Header, pk.Footer)
}

// Disconnect sends the reason passed to the client, if its state has a way to show it, and closes
// the session.
func (s *Session) Disconnect(reason string) {
	switch s.conn.State() {
	case protocol.StateLogin, protocol.StatePlay:
		_ = s.conn.WritePacket(packet.NewDisconnect(reason))
	case protocol.StateLegacy:
		_ = s.conn.WritePacket(&packet.LegacyDisconnect{Reason: reason})
	}
	s.Close()
}

// Close closes the connections of the client and its server. It may be called multiple times.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.Close()
		if conn := s.Server(); conn != nil {
			_ = conn.Close()
		}

		if s.profile.Name != "" {
			s.config.Registry.RemoveSession(s.profile.ID, s)
			s.logger.Info("closed session", "username", s.profile.Name)
		} else {
			s.logger.Debug("closed connection")
		}
	})
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
