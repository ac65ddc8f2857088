// Package packet implements the packets of the API protocol. Every packet is framed by a little
// endian uint32 length followed by a little endian uint32 ID.
package packet

import "bytes"

// IDs of the packets of the API protocol.
const (
	IDConnectionRequest uint32 = iota
	IDConnectionResponse
	IDKick
	IDHeaderAndFooter
)

// Packet is a packet that can be sent over an API connection.
type Packet interface {
	ID() uint32
	Encode(buf *bytes.Buffer)
	// Decode reads the packet from buf, returning ErrShortPacket if buf ends early.
	Decode(buf *bytes.Buffer) error
}
