package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/metrics"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/protocol/packet"
	"github.com/cooldogedev/lumen/server"
)

func violation(state protocol.State, pk packet.Packet) error {
	return fmt.Errorf("%w: unexpected %T in the %s state", protocol.ErrProtocolViolation, pk, state)
}

// handshakeHandler handles the first packet of a connection.
type handshakeHandler struct {
	s *Session
}

// HandleHandshake ...
func (h *handshakeHandler) HandleHandshake(pk *packet.Handshake) bool {
	s := h.s
	version := protocol.VersionForID(pk.ProtocolVersion)
	s.vhost = CleanVhost(pk.ServerAddress)

	switch pk.NextState {
	case packet.NextStateStatus:
		if err := s.transition(version, protocol.StateStatus); err != nil {
			s.fail(err)
			return true
		}
		s.handler = &statusHandler{s: s, version: version}
	case packet.NextStateLogin:
		if err := s.transition(version, protocol.StateLogin); err != nil {
			s.fail(err)
			return true
		}
		if !protocol.IsSupported(version) || (s.config.Policy != nil && !s.config.Policy.Allows(version)) {
			supported := protocol.SupportedVersionString
			if s.config.Policy != nil {
				supported = s.config.Policy.String()
			}
			s.logger.Debug("rejected unsupported version", "protocol", pk.ProtocolVersion)
			metrics.RecordLogin("unsupported")
			s.Disconnect(fmt.Sprintf("Unsupported client version, please use %s", supported))
			return true
		}
		s.handler = &loginHandler{s: s, version: version}
	default:
		s.fail(fmt.Errorf("%w: invalid next state %d", protocol.ErrProtocolViolation, pk.NextState))
	}
	return true
}

// HandleLegacyPing ...
func (h *handshakeHandler) HandleLegacyPing(pk *packet.LegacyPing) bool {
	s := h.s
	status := s.config.Status.ServerStatus(protocol.Legacy, s.config.Registry.Count(), s.config.Opts.MaxPlayers)
	_ = s.conn.WritePacket(packet.NewLegacyStatus(
		pk.Version,
		status.Version.Protocol,
		status.Version.Name,
		status.Description.Text,
		status.Players.Online,
		status.Players.Max,
	))
	s.Close()
	return true
}

// HandleLegacyHandshake ...
func (h *handshakeHandler) HandleLegacyHandshake(*packet.LegacyHandshake) bool {
	h.s.Disconnect("Your client is extremely old. Please update to a newer version of Minecraft.")
	return true
}

func (h *handshakeHandler) unhandled(pk packet.Packet) error {
	return violation(protocol.StateHandshake, pk)
}

// statusHandler answers a server list ping.
type statusHandler struct {
	s        *Session
	version  *protocol.Version
	answered bool
}

// HandleStatusRequest ...
func (h *statusHandler) HandleStatusRequest(pk *packet.StatusRequest) bool {
	if h.answered {
		return false
	}
	h.answered = true

	s := h.s
	status := s.config.Status.ServerStatus(h.version, s.config.Registry.Count(), s.config.Opts.MaxPlayers)
	doc, err := status.JSON()
	if err != nil {
		s.logger.Error("failed to encode status", "err", err)
		s.Close()
		return true
	}
	if err := s.conn.WritePacket(&packet.StatusResponse{Status: doc}); err != nil {
		s.fail(err)
	}
	return true
}

// HandleStatusPing ...
func (h *statusHandler) HandleStatusPing(pk *packet.StatusPing) bool {
	_ = h.s.conn.WritePacket(pk)
	h.s.Close()
	return true
}

func (h *statusHandler) unhandled(pk packet.Packet) error {
	return violation(protocol.StateStatus, pk)
}

type loginStage uint8

const (
	loginAwaitingStart loginStage = iota
	loginAwaitingEncryption
	loginConnecting
)

// loginHandler handles the login of a player: encryption and authentication in online mode, the
// compression threshold and the connection to a server.
type loginHandler struct {
	s       *Session
	version *protocol.Version
	stage   loginStage

	username    string
	verifyToken []byte
}

func (h *loginHandler) online() bool {
	return h.s.config.Authenticator != nil && h.s.config.Keys != nil
}

// HandleLoginStart ...
func (h *loginHandler) HandleLoginStart(pk *packet.LoginStart) bool {
	if h.stage != loginAwaitingStart {
		return false
	}
	if !validUsername(pk.Username) {
		h.s.fail(fmt.Errorf("%w: invalid username %q", protocol.ErrProtocolViolation, pk.Username))
		return true
	}
	h.username = pk.Username

	if !h.online() {
		h.complete(auth.OfflineProfile(pk.Username))
		return true
	}

	h.verifyToken = make([]byte, 4)
	if _, err := rand.Read(h.verifyToken); err != nil {
		h.s.fail(err)
		return true
	}
	h.stage = loginAwaitingEncryption
	if err := h.s.conn.WritePacket(&packet.EncryptionRequest{
		PublicKey:   h.s.config.Keys.Public(),
		VerifyToken: h.verifyToken,
	}); err != nil {
		h.s.fail(err)
	}
	return true
}

// HandleEncryptionResponse ...
func (h *loginHandler) HandleEncryptionResponse(pk *packet.EncryptionResponse) bool {
	if h.stage != loginAwaitingEncryption {
		return false
	}
	s := h.s
	keys := s.config.Keys

	token, err := keys.Decrypt(pk.VerifyToken)
	if err != nil || string(token) != string(h.verifyToken) {
		s.fail(fmt.Errorf("%w: verify token mismatch", protocol.ErrProtocolViolation))
		return true
	}
	secret, err := keys.Decrypt(pk.SharedSecret)
	if err != nil {
		s.fail(fmt.Errorf("%w: decrypt shared secret: %w", protocol.ErrProtocolViolation, err))
		return true
	}
	if err := s.conn.EnableEncryption(secret); err != nil {
		s.fail(fmt.Errorf("%w: %w", protocol.ErrProtocolViolation, err))
		return true
	}

	ip := ""
	if addr, ok := s.conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP.String()
	}
	profile, err := s.config.Authenticator.Authenticate(s.ctx, h.username, auth.ServerIDHash("", secret, keys.Public()), ip)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		metrics.RecordLogin("unauthenticated")
		s.Disconnect("Unable to verify your username. Please restart your game.")
		return true
	} else if err != nil {
		s.logger.Error("failed to authenticate player", "username", h.username, "err", err)
		metrics.RecordLogin("unauthenticated")
		s.Disconnect("Unable to authenticate you with Mojang. Please try again later.")
		return true
	}
	h.complete(profile)
	return true
}

// complete enables compression, connects the player to a server and moves the client to the play
// state.
func (h *loginHandler) complete(profile auth.Profile) {
	h.stage = loginConnecting
	s := h.s
	s.profile = profile

	if existing := s.config.Registry.GetSessionByUsername(profile.Name); existing != nil {
		metrics.RecordLogin("duplicate")
		s.Disconnect("You are already connected to this proxy!")
		return
	}

	if threshold := s.config.Opts.CompressionThreshold; threshold >= 0 && h.version.AtLeast(protocol.Minecraft1_8) {
		if err := s.conn.WritePacket(&packet.SetCompression{Threshold: int32(threshold)}); err != nil {
			s.fail(err)
			return
		}
		if err := s.conn.SetCompressionThreshold(threshold); err != nil {
			s.fail(err)
			return
		}
	}

	identity := &server.Identity{
		Profile:     profile,
		VirtualHost: s.vhost,
		RemoteAddr:  s.conn.RemoteAddr(),
		Version:     h.version,
	}
	conn, err := s.connect(identity)
	if err != nil {
		s.logger.Error("failed to connect player to a server", "username", profile.Name, "err", err)
		metrics.RecordLogin("unreachable")
		s.Disconnect("Unable to connect you to a server, please try again later.")
		return
	}
	s.setServer(conn)

	if err := s.conn.WritePacket(&packet.LoginSuccess{UUID: profile.ID, Username: profile.Name}); err != nil {
		s.fail(err)
		return
	}
	if err := s.conn.SetState(protocol.StatePlay); err != nil {
		s.fail(err)
		return
	}
	if !s.config.Registry.AddSession(profile.ID, s) {
		metrics.RecordLogin("duplicate")
		s.Disconnect("You are already connected to this proxy!")
		return
	}

	s.handler = &playHandler{s: s}
	go handleServer(s, conn)
	metrics.RecordLogin("success")
	s.logger.Info("player joined", "username", profile.Name, "uuid", profile.ID, "version", h.version, "server", conn.Addr())
}

func (h *loginHandler) unhandled(pk packet.Packet) error {
	return violation(protocol.StateLogin, pk)
}

// connect dials the server found by the Discovery, or the fallback server if it cannot be reached.
func (s *Session) connect(identity *server.Identity) (*server.Conn, error) {
	dial := func(addr string) (*server.Conn, error) {
		ctx, cancel := context.WithTimeout(s.ctx, dialTimeout)
		defer cancel()
		return s.config.Dialer.Dial(ctx, addr, identity)
	}

	addr, err := s.config.Discovery.Discover(identity)
	if err == nil {
		conn, dialErr := dial(addr)
		if dialErr == nil {
			return conn, nil
		}
		err = dialErr
		s.logger.Warn("failed to connect to server, trying fallback", "addr", addr, "err", err)
	}

	fallback, fallbackErr := s.config.Discovery.DiscoverFallback(identity)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return dial(fallback)
}

func validUsername(name string) bool {
	if len(name) == 0 || len(name) > 16 {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// playHandler relays the packets of a logged in client to its server.
type playHandler struct {
	s *Session
}

// HandlePluginMessage ...
func (h *playHandler) HandlePluginMessage(pk *packet.PluginMessage) bool {
	h.s.tracker.handlePluginMessage(pk)
	return false
}

func (h *playHandler) unhandled(pk packet.Packet) error {
	ctx := NewContext()
	h.s.Processor().ProcessClient(ctx, pk)
	if ctx.Cancelled() {
		return nil
	}

	conn := h.s.Server()
	if conn == nil {
		return fmt.Errorf("%w: no server to relay to", protocol.ErrProtocolViolation)
	}
	if err := conn.WritePacket(pk); err != nil {
		return fmt.Errorf("write packet to server: %w", err)
	}
	return nil
}

// handleServer relays the packets sent by the server to the client until either side closes.
func handleServer(s *Session, conn *server.Conn) {
	defer s.Close()
	for {
		pk, err := conn.ReadPacket()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("failed to read packet from server", "err", err)
			}
			s.Disconnect("Lost connection to the server.")
			return
		}

		ctx := NewContext()
		s.Processor().ProcessServer(ctx, pk)
		if ctx.Cancelled() {
			continue
		}

		if err := s.conn.WritePacket(pk); err != nil {
			if s.ctx.Err() == nil {
				s.logger.Error("failed to write packet to client", "err", err)
			}
			return
		}
		if _, ok := pk.(*packet.Disconnect); ok {
			s.logger.Info("server disconnected player", "username", s.profile.Name)
			return
		}
	}
}
