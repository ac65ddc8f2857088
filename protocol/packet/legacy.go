package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cooldogedev/lumen/protocol"
	"golang.org/x/text/encoding/unicode"
)

const (
	// LegacyPingID is the first byte of a server list ping sent by clients older than 1.7.
	LegacyPingID = 0xFE
	// LegacyHandshakeID is the first byte of a login attempt by clients older than 1.7.
	LegacyHandshakeID = 0x02
	// LegacyDisconnectID is the first byte of the kick packet answering both.
	LegacyDisconnectID = 0xFF

	legacyPluginMessageID = 0xFA
	legacyPingChannel     = "MC|PingHost"
	legacyColourCode      = "§"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// IsLegacy reports whether the first byte of a connection belongs to a client older than 1.7.
func IsLegacy(first byte) bool {
	return first == LegacyPingID || first == LegacyHandshakeID
}

// LegacyPingVersion is the format of a legacy server list ping.
type LegacyPingVersion uint8

const (
	LegacyPing1_3 LegacyPingVersion = iota
	LegacyPing1_4
	LegacyPing1_6
)

// String ...
func (v LegacyPingVersion) String() string {
	switch v {
	case LegacyPing1_3:
		return "1.3"
	case LegacyPing1_4:
		return "1.4"
	}
	return "1.6"
}

// LegacyPingHandler handles LegacyPing packets.
type LegacyPingHandler interface {
	HandleLegacyPing(pk *LegacyPing) bool
}

// LegacyPing is a server list ping from a client older than 1.7. Only 1.6 clients send the address
// they connected to.
type LegacyPing struct {
	Version         LegacyPingVersion
	ProtocolVersion byte
	VirtualHost     string
	Port            int32
}

// Encode ...
func (pk *LegacyPing) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.Byte(LegacyPingID)
	if pk.Version == LegacyPing1_3 {
		return nil
	}
	w.Byte(0x01)
	if pk.Version == LegacyPing1_4 {
		return nil
	}

	host, err := encodeLegacyString(pk.VirtualHost)
	if err != nil {
		return err
	}
	channel, err := encodeLegacyString(legacyPingChannel)
	if err != nil {
		return err
	}
	w.Byte(legacyPluginMessageID)
	w.Bytes(channel)
	w.Int16(int16(1 + len(host) + 4))
	w.Byte(pk.ProtocolVersion)
	w.Bytes(host)
	w.Int32(pk.Port)
	return nil
}

// Handle ...
func (pk *LegacyPing) Handle(h Handler) bool {
	if lh, ok := h.(LegacyPingHandler); ok {
		return lh.HandleLegacyPing(pk)
	}
	return false
}

// LegacyHandshakeHandler handles LegacyHandshake packets.
type LegacyHandshakeHandler interface {
	HandleLegacyHandshake(pk *LegacyHandshake) bool
}

// LegacyHandshake is a login attempt by a client older than 1.7. Its contents are not read, the
// client is always disconnected.
type LegacyHandshake struct{}

// Encode ...
func (*LegacyHandshake) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.Byte(LegacyHandshakeID)
	return nil
}

// Handle ...
func (pk *LegacyHandshake) Handle(h Handler) bool {
	if lh, ok := h.(LegacyHandshakeHandler); ok {
		return lh.HandleLegacyHandshake(pk)
	}
	return false
}

// LegacyDisconnect kicks a client older than 1.7. It also carries the answer to a legacy ping.
type LegacyDisconnect struct {
	Reason string
}

// NewLegacyStatus returns the LegacyDisconnect answering a legacy ping of the version passed.
func NewLegacyStatus(version LegacyPingVersion, protocolVersion int32, versionName, motd string, online, max int) *LegacyDisconnect {
	motd, _, _ = strings.Cut(motd, "\n")
	if version == LegacyPing1_3 {
		// 1.3 uses the colour code as delimiter, so it cannot appear in the motd.
		return &LegacyDisconnect{Reason: strings.Join([]string{
			strings.ReplaceAll(motd, legacyColourCode, ""),
			strconv.Itoa(online),
			strconv.Itoa(max),
		}, legacyColourCode)}
	}
	return &LegacyDisconnect{Reason: strings.Join([]string{
		legacyColourCode + "1",
		strconv.Itoa(int(protocolVersion)),
		versionName,
		motd,
		strconv.Itoa(online),
		strconv.Itoa(max),
	}, "\x00")}
}

// Encode ...
func (pk *LegacyDisconnect) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	b, err := EncodeLegacyDisconnect(pk.Reason)
	if err != nil {
		return err
	}
	w.Bytes(b)
	return nil
}

// Handle always reports the packet as not handled.
func (*LegacyDisconnect) Handle(Handler) bool {
	return false
}

// EncodeLegacyDisconnect returns the legacy kick packet with the reason passed: the packet id, the
// amount of UTF-16 code units of the reason as a big endian short and the reason in UTF-16BE.
func EncodeLegacyDisconnect(reason string) ([]byte, error) {
	s, err := encodeLegacyString(reason)
	if err != nil {
		return nil, err
	}
	return append([]byte{LegacyDisconnectID}, s...), nil
}

// DecodeLegacy decodes the packet sent by a client older than 1.7 from the start of the
// connection. ErrIncompleteFrame is returned if a 1.6 ping has not been fully received yet.
func DecodeLegacy(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, protocol.ErrIncompleteFrame
	}
	switch b[0] {
	case LegacyHandshakeID:
		return &LegacyHandshake{}, nil
	case LegacyPingID:
	default:
		return nil, fmt.Errorf("%w: 0x%02x does not start a legacy packet", protocol.ErrMalformed, b[0])
	}

	switch {
	case len(b) == 1:
		return &LegacyPing{Version: LegacyPing1_3}, nil
	case b[1] != 0x01:
		return nil, fmt.Errorf("%w: unexpected legacy ping payload 0x%02x", protocol.ErrMalformed, b[1])
	case len(b) == 2:
		return &LegacyPing{Version: LegacyPing1_4}, nil
	}
	return decodeLegacyPing(b[2:])
}

// decodeLegacyPing decodes the MC|PingHost plugin message of a 1.6 ping.
func decodeLegacyPing(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, protocol.ErrIncompleteFrame
	}
	if b[0] != legacyPluginMessageID {
		return nil, fmt.Errorf("%w: expected legacy plugin message, got 0x%02x", protocol.ErrMalformed, b[0])
	}
	r := bytes.NewReader(b[1:])
	channel, err := readLegacyString(r)
	if err != nil {
		return nil, err
	}
	if channel != legacyPingChannel {
		return nil, fmt.Errorf("%w: unexpected legacy ping channel %q", protocol.ErrMalformed, channel)
	}

	var header struct {
		Length   int16
		Protocol byte
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, protocol.ErrIncompleteFrame
	}
	host, err := readLegacyString(r)
	if err != nil {
		return nil, err
	}
	var port int32
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return nil, protocol.ErrIncompleteFrame
	}
	return &LegacyPing{Version: LegacyPing1_6, ProtocolVersion: header.Protocol, VirtualHost: host, Port: port}, nil
}

func encodeLegacyString(s string) ([]byte, error) {
	encoded, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode legacy string: %w", err)
	}
	if len(encoded)/2 > 1<<15-1 {
		return nil, fmt.Errorf("%w: legacy string of %d code units", protocol.ErrFrameTooLarge, len(encoded)/2)
	}
	b := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(encoded)), uint16(len(encoded)/2))
	return append(b, encoded...), nil
}

func readLegacyString(r *bytes.Reader) (string, error) {
	var units uint16
	if err := binary.Read(r, binary.BigEndian, &units); err != nil {
		return "", protocol.ErrIncompleteFrame
	}
	if int(units)*2 > r.Len() {
		return "", protocol.ErrIncompleteFrame
	}
	raw := make([]byte, int(units)*2)
	_, _ = r.Read(raw)
	decoded, err := utf16BE.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", protocol.ErrMalformed, err)
	}
	return string(decoded), nil
}
