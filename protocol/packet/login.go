package packet

import (
	"fmt"
	"strings"

	"github.com/cooldogedev/lumen/protocol"
	"github.com/google/uuid"
)

const (
	maxUsernameLength = 16
	maxServerIDLength = 20
	maxKeyLength      = 256
	maxTokenLength    = 256
	// maxUUIDStringLength is the length of a dashed UUID string.
	maxUUIDStringLength = 36
)

// LoginStartHandler handles LoginStart packets.
type LoginStartHandler interface {
	HandleLoginStart(pk *LoginStart) bool
}

// LoginStart is sent by clients to begin the login with the username passed.
type LoginStart struct {
	Username string
}

// Decode ...
func (pk *LoginStart) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.Username = r.String(maxUsernameLength)
	return r.Err()
}

// Encode ...
func (pk *LoginStart) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.String(pk.Username)
	return nil
}

// Handle ...
func (pk *LoginStart) Handle(h Handler) bool {
	if lh, ok := h.(LoginStartHandler); ok {
		return lh.HandleLoginStart(pk)
	}
	return false
}

// EncryptionRequestHandler handles EncryptionRequest packets.
type EncryptionRequestHandler interface {
	HandleEncryptionRequest(pk *EncryptionRequest) bool
}

// EncryptionRequest asks the client to encrypt the connection with a shared secret sealed with
// the public key of the server.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

// Decode ...
func (pk *EncryptionRequest) Decode(r *protocol.Reader, _ protocol.Direction, v *protocol.Version) error {
	pk.ServerID = r.String(maxServerIDLength)
	if v.AtLeast(protocol.Minecraft1_8) {
		pk.PublicKey = r.ByteArray(maxKeyLength)
		pk.VerifyToken = r.ByteArray(maxTokenLength)
	} else {
		pk.PublicKey = r.ShortByteArray(maxKeyLength)
		pk.VerifyToken = r.ShortByteArray(maxTokenLength)
	}
	return r.Err()
}

// Encode ...
func (pk *EncryptionRequest) Encode(w *protocol.Writer, _ protocol.Direction, v *protocol.Version) error {
	w.String(pk.ServerID)
	if v.AtLeast(protocol.Minecraft1_8) {
		w.ByteArray(pk.PublicKey)
		w.ByteArray(pk.VerifyToken)
	} else {
		w.ShortByteArray(pk.PublicKey)
		w.ShortByteArray(pk.VerifyToken)
	}
	return nil
}

// Handle ...
func (pk *EncryptionRequest) Handle(h Handler) bool {
	if eh, ok := h.(EncryptionRequestHandler); ok {
		return eh.HandleEncryptionRequest(pk)
	}
	return false
}

// EncryptionResponseHandler handles EncryptionResponse packets.
type EncryptionResponseHandler interface {
	HandleEncryptionResponse(pk *EncryptionResponse) bool
}

// EncryptionResponse carries the shared secret and verify token of the client, both sealed with
// the public key of the server.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

// Decode ...
func (pk *EncryptionResponse) Decode(r *protocol.Reader, _ protocol.Direction, v *protocol.Version) error {
	if v.AtLeast(protocol.Minecraft1_8) {
		pk.SharedSecret = r.ByteArray(maxKeyLength)
		pk.VerifyToken = r.ByteArray(maxTokenLength)
	} else {
		pk.SharedSecret = r.ShortByteArray(maxKeyLength)
		pk.VerifyToken = r.ShortByteArray(maxTokenLength)
	}
	return r.Err()
}

// Encode ...
func (pk *EncryptionResponse) Encode(w *protocol.Writer, _ protocol.Direction, v *protocol.Version) error {
	if v.AtLeast(protocol.Minecraft1_8) {
		w.ByteArray(pk.SharedSecret)
		w.ByteArray(pk.VerifyToken)
	} else {
		w.ShortByteArray(pk.SharedSecret)
		w.ShortByteArray(pk.VerifyToken)
	}
	return nil
}

// Handle ...
func (pk *EncryptionResponse) Handle(h Handler) bool {
	if eh, ok := h.(EncryptionResponseHandler); ok {
		return eh.HandleEncryptionResponse(pk)
	}
	return false
}

// LoginSuccessHandler handles LoginSuccess packets.
type LoginSuccessHandler interface {
	HandleLoginSuccess(pk *LoginSuccess) bool
}

// LoginSuccess completes the login and moves the connection to the play state.
type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

// Decode ...
func (pk *LoginSuccess) Decode(r *protocol.Reader, _ protocol.Direction, v *protocol.Version) error {
	if v.AtLeast(protocol.Minecraft1_16) {
		pk.UUID = r.UUID()
	} else {
		s := r.String(maxUUIDStringLength)
		if r.Err() == nil {
			id, err := parseUUID(s, v)
			if err != nil {
				return err
			}
			pk.UUID = id
		}
	}
	pk.Username = r.String(maxUsernameLength)
	return r.Err()
}

// Encode ...
func (pk *LoginSuccess) Encode(w *protocol.Writer, _ protocol.Direction, v *protocol.Version) error {
	switch {
	case v.AtLeast(protocol.Minecraft1_16):
		w.UUID(pk.UUID)
	case v.AtLeast(protocol.Minecraft1_7_6):
		w.String(pk.UUID.String())
	default:
		w.String(UndashedUUID(pk.UUID))
	}
	w.String(pk.Username)
	return nil
}

// Handle ...
func (pk *LoginSuccess) Handle(h Handler) bool {
	if lh, ok := h.(LoginSuccessHandler); ok {
		return lh.HandleLoginSuccess(pk)
	}
	return false
}

// parseUUID parses the string form of a UUID sent before 1.16. 1.7.2 sends it without dashes.
func parseUUID(s string, v *protocol.Version) (uuid.UUID, error) {
	if v.Before(protocol.Minecraft1_7_6) && len(s) != 32 {
		return uuid.Nil, fmt.Errorf("%w: undashed uuid %q has length %d", protocol.ErrMalformed, s, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", protocol.ErrMalformed, err)
	}
	return id, nil
}

// UndashedUUID returns the hex form of a UUID without dashes.
func UndashedUUID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// SetCompressionHandler handles SetCompression packets.
type SetCompressionHandler interface {
	HandleSetCompression(pk *SetCompression) bool
}

// SetCompression enables compression of every packet at least Threshold bytes long. A negative
// threshold disables compression.
type SetCompression struct {
	Threshold int32
}

// Decode ...
func (pk *SetCompression) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.Threshold = r.VarInt()
	return r.Err()
}

// Encode ...
func (pk *SetCompression) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.VarInt(pk.Threshold)
	return nil
}

// Handle ...
func (pk *SetCompression) Handle(h Handler) bool {
	if sh, ok := h.(SetCompressionHandler); ok {
		return sh.HandleSetCompression(pk)
	}
	return false
}

// LoginPluginMessageHandler handles LoginPluginMessage packets.
type LoginPluginMessageHandler interface {
	HandleLoginPluginMessage(pk *LoginPluginMessage) bool
}

// LoginPluginMessage is a custom query sent by the server during the login.
type LoginPluginMessage struct {
	MessageID int32
	Channel   string
	Data      []byte
}

// Decode ...
func (pk *LoginPluginMessage) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.MessageID = r.VarInt()
	pk.Channel = r.String(protocol.DefaultMaxStringSize)
	pk.Data = r.Remaining()
	return r.Err()
}

// Encode ...
func (pk *LoginPluginMessage) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.VarInt(pk.MessageID)
	w.String(pk.Channel)
	w.Bytes(pk.Data)
	return nil
}

// Handle ...
func (pk *LoginPluginMessage) Handle(h Handler) bool {
	if lh, ok := h.(LoginPluginMessageHandler); ok {
		return lh.HandleLoginPluginMessage(pk)
	}
	return false
}

// LoginPluginResponseHandler handles LoginPluginResponse packets.
type LoginPluginResponseHandler interface {
	HandleLoginPluginResponse(pk *LoginPluginResponse) bool
}

// LoginPluginResponse answers a LoginPluginMessage with the same MessageID. Success is false if
// the client did not understand the channel.
type LoginPluginResponse struct {
	MessageID int32
	Success   bool
	Data      []byte
}

// Decode ...
func (pk *LoginPluginResponse) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.MessageID = r.VarInt()
	pk.Success = r.Bool()
	pk.Data = r.Remaining()
	return r.Err()
}

// Encode ...
func (pk *LoginPluginResponse) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.VarInt(pk.MessageID)
	w.Bool(pk.Success)
	w.Bytes(pk.Data)
	return nil
}

// Handle ...
func (pk *LoginPluginResponse) Handle(h Handler) bool {
	if lh, ok := h.(LoginPluginResponseHandler); ok {
		return lh.HandleLoginPluginResponse(pk)
	}
	return false
}

// DisconnectHandler handles Disconnect packets.
type DisconnectHandler interface {
	HandleDisconnect(pk *Disconnect) bool
}

// Disconnect closes the connection with a reason shown to the player. The reason is a JSON text
// component.
type Disconnect struct {
	Reason string
}

// NewDisconnect returns a Disconnect with the plain text reason passed.
func NewDisconnect(reason string) *Disconnect {
	return &Disconnect{Reason: TextComponent(reason)}
}

// Decode ...
func (pk *Disconnect) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.Reason = r.String(protocol.DefaultMaxStringSize)
	return r.Err()
}

// Encode ...
func (pk *Disconnect) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.String(pk.Reason)
	return nil
}

// Handle ...
func (pk *Disconnect) Handle(h Handler) bool {
	if dh, ok := h.(DisconnectHandler); ok {
		return dh.HandleDisconnect(pk)
	}
	return false
}
