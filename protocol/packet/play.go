package packet

import (
	"encoding/json"
	"fmt"

	"github.com/cooldogedev/lumen/protocol"
	"github.com/google/uuid"
)

const (
	maxChatLength       = 256
	maxLegacyChatLength = 100
	maxChatJSONLength   = 262144
)

// Chat positions of clientbound Chat packets.
const (
	ChatPositionChat byte = iota
	ChatPositionSystem
	ChatPositionActionBar
)

// EmptyComponent is a JSON text component that renders as nothing.
const EmptyComponent = `{"translate":""}`

// TextComponent returns a JSON text component with the plain text passed.
func TextComponent(text string) string {
	b, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	return string(b)
}

// KeepAliveHandler handles KeepAlive packets.
type KeepAliveHandler interface {
	HandleKeepAlive(pk *KeepAlive) bool
}

// KeepAlive is sent by the server periodically and echoed by the client.
type KeepAlive struct {
	RandomID int64
}

// Decode ...
func (pk *KeepAlive) Decode(r *protocol.Reader, _ protocol.Direction, v *protocol.Version) error {
	switch {
	case v.AtLeast(protocol.Minecraft1_12_2):
		pk.RandomID = r.Int64()
	case v.AtLeast(protocol.Minecraft1_8):
		pk.RandomID = int64(r.VarInt())
	default:
		pk.RandomID = int64(r.Int32())
	}
	return r.Err()
}

// Encode ...
func (pk *KeepAlive) Encode(w *protocol.Writer, _ protocol.Direction, v *protocol.Version) error {
	switch {
	case v.AtLeast(protocol.Minecraft1_12_2):
		w.Int64(pk.RandomID)
	case v.AtLeast(protocol.Minecraft1_8):
		w.VarInt(int32(pk.RandomID))
	default:
		w.Int32(int32(pk.RandomID))
	}
	return nil
}

// Handle ...
func (pk *KeepAlive) Handle(h Handler) bool {
	if kh, ok := h.(KeepAliveHandler); ok {
		return kh.HandleKeepAlive(pk)
	}
	return false
}

// ChatHandler handles Chat packets.
type ChatHandler interface {
	HandleChat(pk *Chat) bool
}

// Chat is a chat message. Serverbound messages are plain text typed by the player, clientbound
// messages are JSON text components with a position and, since 1.16, the UUID of the sender.
type Chat struct {
	Message  string
	Position byte
	Sender   uuid.UUID
}

// Decode ...
func (pk *Chat) Decode(r *protocol.Reader, dir protocol.Direction, v *protocol.Version) error {
	if dir == protocol.Serverbound {
		max := maxLegacyChatLength
		if v.AtLeast(protocol.Minecraft1_11) {
			max = maxChatLength
		}
		pk.Message = r.String(max)
		return r.Err()
	}

	pk.Message = r.String(maxChatJSONLength)
	if v.AtLeast(protocol.Minecraft1_8) {
		pk.Position = r.Byte()
	}
	if v.AtLeast(protocol.Minecraft1_16) {
		pk.Sender = r.UUID()
	}
	return r.Err()
}

// Encode ...
func (pk *Chat) Encode(w *protocol.Writer, dir protocol.Direction, v *protocol.Version) error {
	w.String(pk.Message)
	if dir == protocol.Serverbound {
		return nil
	}
	if v.AtLeast(protocol.Minecraft1_8) {
		w.Byte(pk.Position)
	}
	if v.AtLeast(protocol.Minecraft1_16) {
		w.UUID(pk.Sender)
	}
	return nil
}

// Handle ...
func (pk *Chat) Handle(h Handler) bool {
	if ch, ok := h.(ChatHandler); ok {
		return ch.HandleChat(pk)
	}
	return false
}

// PluginMessageHandler handles PluginMessage packets.
type PluginMessageHandler interface {
	HandlePluginMessage(pk *PluginMessage) bool
}

// PluginMessage carries custom data on a named channel.
type PluginMessage struct {
	Channel string
	Data    []byte
}

// Decode ...
func (pk *PluginMessage) Decode(r *protocol.Reader, _ protocol.Direction, v *protocol.Version) error {
	pk.Channel = r.String(protocol.DefaultMaxStringSize)
	if v.AtLeast(protocol.Minecraft1_8) {
		pk.Data = r.Remaining()
	} else {
		pk.Data = r.ForgeByteArray()
	}
	return r.Err()
}

// Encode ...
func (pk *PluginMessage) Encode(w *protocol.Writer, _ protocol.Direction, v *protocol.Version) error {
	w.String(pk.Channel)
	if v.AtLeast(protocol.Minecraft1_8) {
		w.Bytes(pk.Data)
	} else {
		if len(pk.Data) > protocol.MaxForgeByteArrayLength {
			return fmt.Errorf("plugin message of %d bytes exceeds %d", len(pk.Data), protocol.MaxForgeByteArrayLength)
		}
		w.ForgeByteArray(pk.Data)
	}
	return nil
}

// Handle ...
func (pk *PluginMessage) Handle(h Handler) bool {
	if ph, ok := h.(PluginMessageHandler); ok {
		return ph.HandlePluginMessage(pk)
	}
	return false
}

// HeaderAndFooter sets the header and footer of the player list. The proxy only ever sends it, so
// it cannot be decoded.
type HeaderAndFooter struct {
	Header string
	Footer string
}

// ResetHeaderAndFooter returns a HeaderAndFooter clearing both header and footer.
func ResetHeaderAndFooter() *HeaderAndFooter {
	return &HeaderAndFooter{Header: EmptyComponent, Footer: EmptyComponent}
}

// Encode ...
func (pk *HeaderAndFooter) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.String(pk.Header)
	w.String(pk.Footer)
	return nil
}

// Handle always reports the packet as not handled.
func (*HeaderAndFooter) Handle(Handler) bool {
	return false
}
