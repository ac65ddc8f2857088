package packet

import (
	"bytes"
	"testing"

	"github.com/cooldogedev/lumen/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(t *testing.T, state protocol.State, dir protocol.Direction, v *protocol.Version) *Table {
	t.Helper()
	table, err := Lookup(state, dir, v)
	require.NoError(t, err)
	return table
}

func encode(t *testing.T, table *Table, pk Packet) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, table.Encode(buf, pk))
	return buf.Bytes()
}

func TestPlayPacketIDs(t *testing.T) {
	tests := []struct {
		dir  protocol.Direction
		pk   Packet
		v    *protocol.Version
		want int32
	}{
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_7_2, 0x00},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_8, 0x00},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_9, 0x0B},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_12, 0x0C},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_12_2, 0x0B},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_13_2, 0x0E},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_15_2, 0x0F},
		{protocol.Serverbound, &KeepAlive{}, protocol.Minecraft1_16_4, 0x10},
		{protocol.Clientbound, &KeepAlive{}, protocol.Minecraft1_16_1, 0x20},
		{protocol.Clientbound, &KeepAlive{}, protocol.Minecraft1_16_4, 0x1F},
		{protocol.Serverbound, &Chat{}, protocol.Minecraft1_12_2, 0x02},
		{protocol.Clientbound, &Chat{}, protocol.Minecraft1_7_6, 0x02},
		{protocol.Clientbound, &PluginMessage{}, protocol.Minecraft1_7_2, 0x3F},
		{protocol.Clientbound, &PluginMessage{}, protocol.Minecraft1_16_4, 0x17},
		{protocol.Clientbound, &Disconnect{}, protocol.Minecraft1_14Combat1, 0x1A},
		{protocol.Clientbound, &HeaderAndFooter{}, protocol.Minecraft1_8, 0x47},
		{protocol.Clientbound, &HeaderAndFooter{}, protocol.Minecraft1_16_4, 0x53},
	}
	for _, tt := range tests {
		table := lookup(t, protocol.StatePlay, tt.dir, tt.v)
		id, ok := table.ID(tt.pk)
		require.True(t, ok, "%T %s %s", tt.pk, tt.dir, tt.v)
		assert.Equal(t, tt.want, id, "%T %s %s", tt.pk, tt.dir, tt.v)
	}
}

func TestLookupFallback(t *testing.T) {
	for _, state := range []protocol.State{protocol.StateHandshake, protocol.StateStatus, protocol.StateLogin} {
		table, err := Lookup(state, protocol.Serverbound, protocol.Unknown)
		require.NoError(t, err)
		assert.Same(t, protocol.Minimum, table.Version())
		assert.Equal(t, state, table.State())
		assert.Equal(t, protocol.Serverbound, table.Direction())
	}

	_, err := Lookup(protocol.StatePlay, protocol.Serverbound, protocol.Unknown)
	assert.ErrorIs(t, err, protocol.ErrUnsupportedVersion)
	_, err = Lookup(protocol.StateLegacy, protocol.Serverbound, protocol.Minimum)
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
}

func TestVersionGatedPackets(t *testing.T) {
	table := lookup(t, protocol.StateLogin, protocol.Clientbound, protocol.Minecraft1_7_6)
	_, ok := table.ID(&SetCompression{})
	assert.False(t, ok)
	_, ok = table.ID(&LoginPluginMessage{})
	assert.False(t, ok)
	err := table.Encode(&bytes.Buffer{}, &SetCompression{Threshold: 256})
	assert.ErrorIs(t, err, ErrUnregistered)

	table = lookup(t, protocol.StateLogin, protocol.Clientbound, protocol.Minecraft1_13)
	id, ok := table.ID(&LoginPluginMessage{})
	require.True(t, ok)
	assert.Equal(t, int32(0x04), id)

	table = lookup(t, protocol.StatePlay, protocol.Clientbound, protocol.Minecraft1_7_6)
	_, ok = table.ID(&HeaderAndFooter{})
	assert.False(t, ok)
}

func TestEncodeOnlyIsNeverDecoded(t *testing.T) {
	table := lookup(t, protocol.StatePlay, protocol.Clientbound, protocol.Minecraft1_16_4)
	payload := encode(t, table, &HeaderAndFooter{Header: TextComponent("a"), Footer: EmptyComponent})
	assert.False(t, table.Decodes(0x53))

	pk, err := table.Decode(payload)
	require.NoError(t, err)
	unknown, ok := pk.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, int32(0x53), unknown.ID)
	assert.Equal(t, payload[1:], unknown.Payload)
}

func TestUnknownPassThrough(t *testing.T) {
	table := lookup(t, protocol.StatePlay, protocol.Serverbound, protocol.Minecraft1_12_2)
	payload := []byte{0x7f, 0x01, 0x02, 0x03}

	pk, err := table.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, &Unknown{ID: 0x7f, Payload: []byte{1, 2, 3}}, pk)
	assert.False(t, pk.Handle(struct{}{}))

	// Unknown packets are written back byte for byte.
	assert.Equal(t, payload, encode(t, table, pk))
}

func TestDecodeTrailingData(t *testing.T) {
	table := lookup(t, protocol.StateStatus, protocol.Serverbound, protocol.Maximum)
	_, err := table.Decode([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, protocol.ErrTrailingData)

	_, err = table.Decode([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, protocol.ErrMalformed)

	_, err = table.Decode(nil)
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

func TestHandshakeRoundTrip(t *testing.T) {
	table := lookup(t, protocol.StateHandshake, protocol.Serverbound, protocol.Unknown)
	in := &Handshake{ProtocolVersion: 754, ServerAddress: "mc.example.com", Port: 25565, NextState: NextStateLogin}

	pk, err := table.Decode(encode(t, table, in))
	require.NoError(t, err)
	assert.Equal(t, in, pk)
}

func TestKeepAliveVersions(t *testing.T) {
	tests := []struct {
		v    *protocol.Version
		size int
	}{
		{protocol.Minecraft1_7_6, 4},
		{protocol.Minecraft1_8, 2},
		{protocol.Minecraft1_12_1, 2},
		{protocol.Minecraft1_12_2, 8},
	}
	for _, tt := range tests {
		table := lookup(t, protocol.StatePlay, protocol.Clientbound, tt.v)
		payload := encode(t, table, &KeepAlive{RandomID: 300})
		assert.Len(t, payload, 1+tt.size, "version %s", tt.v)

		pk, err := table.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, &KeepAlive{RandomID: 300}, pk)
	}
}

func TestLoginSuccessVersions(t *testing.T) {
	id := uuid.MustParse("b50ad385-829d-3141-a216-7e7d7539ba7f")
	in := &LoginSuccess{UUID: id, Username: "Notch"}

	for _, v := range []*protocol.Version{protocol.Minecraft1_7_2, protocol.Minecraft1_7_6, protocol.Minecraft1_15_2, protocol.Minecraft1_16} {
		table := lookup(t, protocol.StateLogin, protocol.Clientbound, v)
		payload := encode(t, table, in)

		pk, err := table.Decode(payload)
		require.NoError(t, err, "version %s", v)
		assert.Equal(t, in, pk, "version %s", v)
	}

	r := protocol.NewReader(encode(t, lookup(t, protocol.StateLogin, protocol.Clientbound, protocol.Minecraft1_7_2), in)[1:])
	assert.Equal(t, "b50ad385829d3141a2167e7d7539ba7f", r.String(36))
}

func TestChatDirections(t *testing.T) {
	sender := uuid.New()
	clientbound := lookup(t, protocol.StatePlay, protocol.Clientbound, protocol.Minecraft1_16_4)
	in := &Chat{Message: TextComponent("hi"), Position: ChatPositionSystem, Sender: sender}
	pk, err := clientbound.Decode(encode(t, clientbound, in))
	require.NoError(t, err)
	assert.Equal(t, in, pk)

	// Serverbound chat carries only the message.
	serverbound := lookup(t, protocol.StatePlay, protocol.Serverbound, protocol.Minecraft1_16_4)
	payload := encode(t, serverbound, &Chat{Message: "hi", Position: ChatPositionSystem, Sender: sender})
	assert.Equal(t, []byte{0x03, 0x02, 'h', 'i'}, payload)

	// 1.10 clients may send at most 100 characters.
	old := lookup(t, protocol.StatePlay, protocol.Serverbound, protocol.Minecraft1_10)
	_, err = old.Decode(encode(t, old, &Chat{Message: string(bytes.Repeat([]byte("a"), 101))}))
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

func TestPluginMessageVersions(t *testing.T) {
	in := &PluginMessage{Channel: "MC|Brand", Data: []byte("vanilla")}
	for _, v := range []*protocol.Version{protocol.Minecraft1_7_6, protocol.Minecraft1_8} {
		table := lookup(t, protocol.StatePlay, protocol.Serverbound, v)
		pk, err := table.Decode(encode(t, table, in))
		require.NoError(t, err)
		assert.Equal(t, in, pk)
	}

	table := lookup(t, protocol.StatePlay, protocol.Serverbound, protocol.Minecraft1_7_6)
	payload := encode(t, table, in)
	assert.Equal(t, []byte{0x00, 0x07}, payload[2+len(in.Channel):4+len(in.Channel)])

	// Forge payloads above the range of a short use the extended length.
	large := &PluginMessage{Channel: "FML|HS", Data: bytes.Repeat([]byte{1}, 40000)}
	pk, err := table.Decode(encode(t, table, large))
	require.NoError(t, err)
	assert.Equal(t, large, pk)
}

type handler struct {
	handshakes int
}

func (h *handler) HandleHandshake(*Handshake) bool {
	h.handshakes++
	return true
}

func TestHandleDispatch(t *testing.T) {
	h := &handler{}
	assert.True(t, (&Handshake{}).Handle(h))
	assert.Equal(t, 1, h.handshakes)

	assert.False(t, (&KeepAlive{}).Handle(h))
	assert.False(t, (&StatusRequest{}).Handle(h))
	assert.False(t, ResetHeaderAndFooter().Handle(h))
}

func TestTextComponent(t *testing.T) {
	assert.Equal(t, `{"text":"hello \"world\""}`, TextComponent(`hello "world"`))
	assert.Equal(t, `{"translate":""}`, ResetHeaderAndFooter().Header)
}
