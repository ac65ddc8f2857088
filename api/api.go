package api

import (
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/cooldogedev/lumen/api/packet"
	protocolpacket "github.com/cooldogedev/lumen/protocol/packet"
	"github.com/cooldogedev/lumen/session"
)

type API struct {
	authentication Authentication
	sessions       *session.Registry
	listener       net.Listener
	logger         *slog.Logger
}

func NewAPI(sessions *session.Registry, logger *slog.Logger, authentication Authentication) *API {
	return &API{
		authentication: authentication,
		sessions:       sessions,
		logger:         logger,
	}
}

func (a *API) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.listener = listener
	return nil
}

// Addr returns the address the API listens on.
func (a *API) Addr() net.Addr {
	return a.listener.Addr()
}

func (a *API) Accept() error {
	conn, err := a.listener.Accept()
	if err != nil {
		return err
	}

	if conn, ok := conn.(*net.TCPConn); ok {
		_ = conn.SetLinger(0)
		_ = conn.SetNoDelay(true)
	}

	go a.handle(conn)
	a.logger.Info("accepted connection", "addr", conn.RemoteAddr().String())
	return nil
}

func (a *API) Close() error {
	if a.listener == nil {
		return nil
	}
	return a.listener.Close()
}

func (a *API) handle(conn net.Conn) {
	c := NewClient(conn, packet.NewPool())
	defer func() {
		_ = c.Close()
		a.logger.Info("disconnected connection", "addr", conn.RemoteAddr().String())
	}()

	connectionRequestPacket, err := c.ReadPacket()
	if err != nil {
		_ = c.WritePacket(&packet.ConnectionResponse{Response: packet.ResponseFail})
		a.logger.Error("failed to read connection request", "err", err)
		return
	}

	connectionRequest, ok := connectionRequestPacket.(*packet.ConnectionRequest)
	if !ok {
		_ = c.WritePacket(&packet.ConnectionResponse{Response: packet.ResponseFail})
		a.logger.Error("expected connection request", "id", connectionRequestPacket.ID())
		return
	}

	if a.authentication != nil && !a.authentication.Authenticate(connectionRequest.Token) {
		_ = c.WritePacket(&packet.ConnectionResponse{Response: packet.ResponseUnauthorized})
		a.logger.Debug("closed unauthenticated connection", "addr", conn.RemoteAddr().String())
		return
	}

	_ = c.WritePacket(&packet.ConnectionResponse{Response: packet.ResponseSuccess})
	a.logger.Info("authorized connection", "addr", conn.RemoteAddr().String())
	for {
		pk, err := c.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				a.logger.Error("failed to read packet", "err", err)
			}
			return
		}

		switch pk := pk.(type) {
		case *packet.Kick:
			s := a.sessions.GetSessionByUsername(pk.Username)
			if s == nil {
				a.logger.Debug("tried to disconnect an unknown player", "username", pk.Username)
				continue
			}
			s.Disconnect(pk.Reason)
		case *packet.HeaderAndFooter:
			s := a.sessions.GetSessionByUsername(pk.Username)
			if s == nil {
				a.logger.Debug("tried to set the player list of an unknown player", "username", pk.Username)
				continue
			}

			if pk.Header == "" && pk.Footer == "" {
				err = s.ResetHeaderAndFooter()
			} else {
				err = s.SendHeaderAndFooter(protocolpacket.TextComponent(pk.Header), protocolpacket.TextComponent(pk.Footer))
			}
			if err != nil {
				a.logger.Error("failed to set player list", "username", pk.Username, "err", err)
			}
		}
	}
}
