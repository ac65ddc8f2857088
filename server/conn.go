package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/cooldogedev/lumen/minecraft"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/protocol/packet"
)

// Conn is a connection to a server, dialed for a single player.
type Conn struct {
	*minecraft.Conn
	addr string
}

// Addr returns the address the connection was dialed to.
func (c *Conn) Addr() string {
	return c.addr
}

// login performs the handshake and login sequence with the server, and moves the connection to the
// play state once the server accepted the player.
func (c *Conn) login(ctx context.Context, host string, port uint16, identity *Identity) (err error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer func() {
		if !stop() {
			err = fmt.Errorf("login: %w", context.Cause(ctx))
		}
	}()

	if err := c.SetVersion(identity.Version); err != nil {
		return err
	}
	if err := c.WritePacket(&packet.Handshake{
		ProtocolVersion: identity.Version.Protocol(),
		ServerAddress:   host,
		Port:            port,
		NextState:       packet.NextStateLogin,
	}); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	if err := c.SetState(protocol.StateLogin); err != nil {
		return err
	}
	if err := c.WritePacket(&packet.LoginStart{Username: identity.Name}); err != nil {
		return fmt.Errorf("write login start: %w", err)
	}

	for {
		pk, err := c.ReadPacket()
		if err != nil {
			return fmt.Errorf("read login packet: %w", err)
		}

		switch pk := pk.(type) {
		case *packet.SetCompression:
			if err := c.SetCompressionThreshold(int(pk.Threshold)); err != nil {
				return err
			}
		case *packet.LoginPluginMessage:
			if err := c.WritePacket(&packet.LoginPluginResponse{MessageID: pk.MessageID}); err != nil {
				return fmt.Errorf("write login plugin response: %w", err)
			}
		case *packet.EncryptionRequest:
			return ErrOnlineMode
		case *packet.Disconnect:
			return fmt.Errorf("%w: %s", ErrDisconnected, pk.Reason)
		case *packet.LoginSuccess:
			return c.SetState(protocol.StatePlay)
		default:
			return fmt.Errorf("%w: unexpected %T during login", protocol.ErrProtocolViolation, pk)
		}
	}
}

// ForwardingAddress returns the handshake host carrying the identity of the player to a server
// behind BungeeCord: the host, the IP of the player, the undashed UUID and, if present, the
// properties of the profile, separated by NUL characters.
func ForwardingAddress(host string, identity *Identity) string {
	ip := ""
	if identity.RemoteAddr != nil {
		ip = identity.RemoteAddr.String()
		if h, _, err := net.SplitHostPort(ip); err == nil {
			ip = h
		}
	}

	fields := []string{host, ip, packet.UndashedUUID(identity.ID)}
	if len(identity.Properties) > 0 {
		properties, err := json.Marshal(identity.Properties)
		if err == nil {
			fields = append(fields, string(properties))
		}
	}
	return strings.Join(fields, "\x00")
}
