package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/minecraft"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/protocol/packet"
	"github.com/cooldogedev/lumen/server"
	"github.com/cooldogedev/lumen/transport"
	"github.com/cooldogedev/lumen/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a server accepting a single player and echoing its chat messages.
type backend struct {
	listener  net.Listener
	handshake chan *packet.Handshake
	username  chan string
	chat      chan string
	conn      chan *minecraft.Conn
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	b := &backend{
		listener:  listener,
		handshake: make(chan *packet.Handshake, 1),
		username:  make(chan string, 1),
		chat:      make(chan string, 1),
		conn:      make(chan *minecraft.Conn, 1),
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	go b.serve(t)
	return b
}

func (b *backend) addr() string {
	return b.listener.Addr().String()
}

func (b *backend) serve(t *testing.T) {
	c, err := b.listener.Accept()
	if err != nil {
		return
	}
	conn := minecraft.NewConn(c, minecraft.Config{Direction: protocol.Serverbound})
	t.Cleanup(func() {
		_ = conn.Close()
	})

	pk, err := conn.ReadPacket()
	if !assert.NoError(t, err) {
		return
	}
	handshake := pk.(*packet.Handshake)
	b.handshake <- handshake
	assert.NoError(t, conn.SetVersion(protocol.VersionForID(handshake.ProtocolVersion)))
	assert.NoError(t, conn.SetState(protocol.StateLogin))

	pk, err = conn.ReadPacket()
	if !assert.NoError(t, err) {
		return
	}
	start := pk.(*packet.LoginStart)
	b.username <- start.Username

	assert.NoError(t, conn.WritePacket(&packet.SetCompression{Threshold: 64}))
	assert.NoError(t, conn.SetCompressionThreshold(64))
	assert.NoError(t, conn.WritePacket(&packet.LoginSuccess{UUID: auth.OfflineUUID(start.Username), Username: start.Username}))
	assert.NoError(t, conn.SetState(protocol.StatePlay))
	b.conn <- conn

	for {
		pk, err := conn.ReadPacket()
		if err != nil {
			return
		}
		if chat, ok := pk.(*packet.Chat); ok {
			b.chat <- chat.Message
			_ = conn.WritePacket(&packet.Chat{Message: packet.TextComponent(chat.Message), Position: packet.ChatPositionChat})
		}
	}
}

type fakeAuthenticator struct {
	profile auth.Profile
	err     error
}

func (a fakeAuthenticator) Authenticate(_ context.Context, username, serverID, _ string) (auth.Profile, error) {
	if serverID == "" {
		return auth.Profile{}, auth.ErrNotAuthenticated
	}
	return a.profile, a.err
}

type harness struct {
	session *Session
	client  *minecraft.Conn
	config  Config
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()
	if config.Opts == nil {
		config.Opts = util.DefaultOpts()
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	config.Logger = slog.Default()
	config.Dialer.Transport = transport.NewTCP()

	a, b := net.Pipe()
	s := NewSession(minecraft.NewConn(a, minecraft.Config{Direction: protocol.Serverbound}), config)
	go s.Serve()

	client := minecraft.NewConn(b, minecraft.Config{Direction: protocol.Clientbound})
	t.Cleanup(func() {
		_ = client.Close()
		s.Close()
	})
	return &harness{session: s, client: client, config: config}
}

func (h *harness) write(t *testing.T, pk packet.Packet) {
	t.Helper()
	require.NoError(t, h.client.WritePacket(pk))
}

func (h *harness) read(t *testing.T) packet.Packet {
	t.Helper()
	pk, err := h.client.ReadPacket()
	require.NoError(t, err)
	return pk
}

func (h *harness) handshake(t *testing.T, v *protocol.Version, nextState int32) {
	t.Helper()
	h.write(t, &packet.Handshake{ProtocolVersion: v.Protocol(), ServerAddress: "Play.Example.com.\x00FML\x00", Port: 25577, NextState: nextState})
	require.NoError(t, h.client.SetVersion(v))
	state := protocol.StateStatus
	if nextState == packet.NextStateLogin {
		state = protocol.StateLogin
	}
	require.NoError(t, h.client.SetState(state))
}

func (h *harness) expectClosed(t *testing.T) {
	t.Helper()
	_, err := h.client.ReadPacket()
	assert.Error(t, err)
	select {
	case <-h.session.Context().Done():
	case <-time.After(time.Second * 5):
		t.Fatal("session was not closed")
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, Config{})
	h.handshake(t, protocol.Minecraft1_12_2, packet.NextStateStatus)
	h.write(t, &packet.StatusRequest{})

	response, ok := h.read(t).(*packet.StatusResponse)
	require.True(t, ok)
	var status util.ServerStatus
	require.NoError(t, json.Unmarshal([]byte(response.Status), &status))
	assert.Equal(t, protocol.Minecraft1_12_2.Protocol(), status.Version.Protocol)
	assert.Equal(t, "Lumen 1.7.2-1.16.4", status.Version.Name)
	assert.Equal(t, "A Lumen Proxy", status.Description.Text)
	assert.Equal(t, 500, status.Players.Max)
	assert.Equal(t, 0, status.Players.Online)
	assert.Equal(t, "play.example.com", strings.ToLower(h.session.VirtualHost()))

	h.write(t, &packet.StatusPing{RandomID: 42})
	assert.Equal(t, &packet.StatusPing{RandomID: 42}, h.read(t))
	h.expectClosed(t)
}

func TestStatusUnknownVersion(t *testing.T) {
	h := newHarness(t, Config{})
	h.handshake(t, protocol.VersionForID(9999), packet.NextStateStatus)
	h.write(t, &packet.StatusRequest{})

	response, ok := h.read(t).(*packet.StatusResponse)
	require.True(t, ok)
	var status util.ServerStatus
	require.NoError(t, json.Unmarshal([]byte(response.Status), &status))
	assert.Equal(t, protocol.Maximum.Protocol(), status.Version.Protocol)
}

func TestStatusRequestedTwice(t *testing.T) {
	h := newHarness(t, Config{})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateStatus)
	h.write(t, &packet.StatusRequest{})
	h.read(t)

	// A second request is a protocol violation, and the status state has no way to show a reason.
	h.write(t, &packet.StatusRequest{})
	h.expectClosed(t)
}

func TestLoginUnsupportedVersion(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, &packet.Handshake{ProtocolVersion: 9999, ServerAddress: "localhost", Port: 25577, NextState: packet.NextStateLogin})
	require.NoError(t, h.client.SetState(protocol.StateLogin))

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, packet.TextComponent("Unsupported client version, please use 1.7.2-1.16.4"), disconnect.Reason)
	h.expectClosed(t)
}

func TestLoginVersionPolicy(t *testing.T) {
	policy, err := protocol.NewVersionPolicy(protocol.Minecraft1_13, nil)
	require.NoError(t, err)

	h := newHarness(t, Config{Policy: policy})
	h.handshake(t, protocol.Minecraft1_8, packet.NextStateLogin)

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Contains(t, disconnect.Reason, "1.13-1.16.4")
}

func TestHandshakeInvalidNextState(t *testing.T) {
	h := newHarness(t, Config{})
	h.write(t, &packet.Handshake{ProtocolVersion: 754, ServerAddress: "localhost", Port: 25577, NextState: 3})
	h.expectClosed(t)
}

func TestLegacyPing(t *testing.T) {
	a, b := net.Pipe()
	s := NewSession(minecraft.NewConn(a, minecraft.Config{Direction: protocol.Serverbound}), Config{})
	go s.Serve()
	defer b.Close()

	go func() {
		_, _ = b.Write([]byte{packet.LegacyPingID, 0x01})
	}()

	buf := make([]byte, 256)
	n, err := b.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 3)
	assert.Equal(t, byte(packet.LegacyDisconnectID), buf[0])

	expected, err := packet.EncodeLegacyDisconnect("§1\x00754\x00Lumen 1.7.2-1.16.4\x00A Lumen Proxy\x000\x00500")
	require.NoError(t, err)
	assert.Equal(t, expected, buf[:n])
}

func TestOfflineLogin(t *testing.T) {
	b := newBackend(t)
	registry := NewRegistry()
	h := newHarness(t, Config{
		Discovery: server.NewStaticDiscovery(b.addr(), ""),
		Registry:  registry,
	})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "Notch"})

	compression, ok := h.read(t).(*packet.SetCompression)
	require.True(t, ok)
	assert.Equal(t, int32(256), compression.Threshold)
	require.NoError(t, h.client.SetCompressionThreshold(256))

	success, ok := h.read(t).(*packet.LoginSuccess)
	require.True(t, ok)
	assert.Equal(t, "Notch", success.Username)
	assert.Equal(t, uuid.MustParse("b50ad385-829d-3141-a216-7e7d7539ba7f"), success.UUID)
	require.NoError(t, h.client.SetState(protocol.StatePlay))

	handshake := <-b.handshake
	assert.Equal(t, int32(754), handshake.ProtocolVersion)
	assert.Equal(t, "127.0.0.1", handshake.ServerAddress)
	assert.Equal(t, "Notch", <-b.username)
	backendConn := <-b.conn

	// Chat is relayed to the server and its answer back to the client.
	h.write(t, &packet.Chat{Message: "hello"})
	assert.Equal(t, "hello", <-b.chat)
	chat, ok := h.read(t).(*packet.Chat)
	require.True(t, ok)
	assert.Equal(t, packet.TextComponent("hello"), chat.Message)

	// Plugin channel registrations are tracked before being relayed.
	h.write(t, &packet.PluginMessage{Channel: "minecraft:register", Data: []byte("lumen:test")})
	require.Eventually(t, func() bool {
		return h.session.Tracker().Registered("lumen:test")
	}, time.Second*5, time.Millisecond*10)

	require.Eventually(t, func() bool {
		return registry.GetSessionByUsername("Notch") == h.session
	}, time.Second*5, time.Millisecond*10)
	require.NotNil(t, h.session.Server())
	assert.Equal(t, b.addr(), h.session.Server().Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- h.session.SendHeaderAndFooter(packet.TextComponent("header"), packet.TextComponent("footer"))
	}()
	unknown, ok := h.read(t).(*packet.Unknown)
	require.NoError(t, <-errc)
	require.True(t, ok)
	assert.Equal(t, int32(0x53), unknown.ID)

	// Losing the server disconnects the player.
	_ = backendConn.Close()
	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, packet.TextComponent("Lost connection to the server."), disconnect.Reason)
	h.expectClosed(t)
	assert.Eventually(t, func() bool {
		return registry.GetSessionByUsername("Notch") == nil
	}, time.Second*5, time.Millisecond*10)
}

type cancelChat struct {
	NopProcessor
	message string
}

func (p cancelChat) ProcessClient(ctx *Context, pk packet.Packet) {
	if chat, ok := pk.(*packet.Chat); ok && chat.Message == p.message {
		ctx.Cancel()
	}
}

func TestProcessorCancelsPackets(t *testing.T) {
	b := newBackend(t)
	h := newHarness(t, Config{Discovery: server.NewStaticDiscovery(b.addr(), "")})
	h.config.Opts.CompressionThreshold = -1
	h.handshake(t, protocol.Minecraft1_8, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "jeb_"})
	_, ok := h.read(t).(*packet.LoginSuccess)
	require.True(t, ok)
	require.NoError(t, h.client.SetState(protocol.StatePlay))
	<-b.conn

	h.session.SetProcessor(cancelChat{message: "dropped"})
	h.write(t, &packet.Chat{Message: "dropped"})
	h.write(t, &packet.Chat{Message: "relayed"})
	assert.Equal(t, "relayed", <-b.chat)
}

func TestLoginFallback(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unreachable := listener.Addr().String()
	require.NoError(t, listener.Close())

	b := newBackend(t)
	h := newHarness(t, Config{Discovery: server.NewStaticDiscovery(unreachable, b.addr())})
	h.handshake(t, protocol.Minecraft1_12_2, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "Notch"})

	_, ok := h.read(t).(*packet.SetCompression)
	require.True(t, ok)
	require.NoError(t, h.client.SetCompressionThreshold(256))
	_, ok = h.read(t).(*packet.LoginSuccess)
	require.True(t, ok)
	assert.Equal(t, "Notch", <-b.username)
}

func TestLoginUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unreachable := listener.Addr().String()
	require.NoError(t, listener.Close())

	h := newHarness(t, Config{Discovery: server.NewStaticDiscovery(unreachable, "")})
	h.config.Opts.CompressionThreshold = -1
	h.handshake(t, protocol.Minecraft1_12_2, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "Notch"})

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, packet.TextComponent("Unable to connect you to a server, please try again later."), disconnect.Reason)
	h.expectClosed(t)
}

func TestLoginDuplicate(t *testing.T) {
	registry := NewRegistry()
	existing := profileSession("Notch")
	require.True(t, registry.AddSession(existing.profile.ID, existing))

	h := newHarness(t, Config{Registry: registry, Discovery: server.NewStaticDiscovery("127.0.0.1:1", "")})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "notch"})

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, packet.TextComponent("You are already connected to this proxy!"), disconnect.Reason)
	assert.Same(t, existing, registry.GetSessionByUsername("Notch"))
}

func TestLoginInvalidUsername(t *testing.T) {
	h := newHarness(t, Config{})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "bad name"})

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Contains(t, disconnect.Reason, "A protocol error occurred")
	h.expectClosed(t)
}

func TestLoginUnexpectedPacket(t *testing.T) {
	h := newHarness(t, Config{})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginPluginResponse{MessageID: 1})

	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Contains(t, disconnect.Reason, "unexpected *packet.LoginPluginResponse")
}

func TestOnlineLogin(t *testing.T) {
	keys, err := auth.GenerateKeyPair()
	require.NoError(t, err)

	profile := auth.Profile{ID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Name: "Notch"}
	b := newBackend(t)
	h := newHarness(t, Config{
		Discovery:     server.NewStaticDiscovery(b.addr(), ""),
		Authenticator: fakeAuthenticator{profile: profile},
		Keys:          keys,
	})
	h.config.Opts.CompressionThreshold = -1
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "Notch"})

	request, ok := h.read(t).(*packet.EncryptionRequest)
	require.True(t, ok)
	assert.Equal(t, keys.Public(), request.PublicKey)
	require.Len(t, request.VerifyToken, 4)

	key, err := x509.ParsePKIXPublicKey(request.PublicKey)
	require.NoError(t, err)
	public := key.(*rsa.PublicKey)

	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	sealedSecret, err := rsa.EncryptPKCS1v15(rand.Reader, public, secret)
	require.NoError(t, err)
	sealedToken, err := rsa.EncryptPKCS1v15(rand.Reader, public, request.VerifyToken)
	require.NoError(t, err)

	h.write(t, &packet.EncryptionResponse{SharedSecret: sealedSecret, VerifyToken: sealedToken})
	require.NoError(t, h.client.EnableEncryption(secret))

	success, ok := h.read(t).(*packet.LoginSuccess)
	require.True(t, ok)
	assert.Equal(t, profile.ID, success.UUID)
	assert.Equal(t, profile.Name, h.session.Profile().Name)
	assert.Equal(t, "Notch", <-b.username)
}

func TestOnlineLoginBadToken(t *testing.T) {
	keys, err := auth.GenerateKeyPair()
	require.NoError(t, err)

	h := newHarness(t, Config{Authenticator: fakeAuthenticator{}, Keys: keys})
	h.handshake(t, protocol.Minecraft1_16_4, packet.NextStateLogin)
	h.write(t, &packet.LoginStart{Username: "Notch"})
	_, ok := h.read(t).(*packet.EncryptionRequest)
	require.True(t, ok)

	h.write(t, &packet.EncryptionResponse{SharedSecret: []byte{1}, VerifyToken: []byte{2}})
	disconnect, ok := h.read(t).(*packet.Disconnect)
	require.True(t, ok)
	assert.Contains(t, disconnect.Reason, "verify token mismatch")
}

func TestSendHeaderAndFooterBeforePlay(t *testing.T) {
	h := newHarness(t, Config{})
	assert.ErrorIs(t, h.session.SendHeaderAndFooter("{}", "{}"), protocol.ErrIllegalTransition)
	assert.ErrorIs(t, h.session.ResetHeaderAndFooter(), protocol.ErrIllegalTransition)
}
