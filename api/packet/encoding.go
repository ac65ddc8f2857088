package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// maxStringLength bounds strings read from API connections.
const maxStringLength = 1 << 16

// ErrShortPacket is returned when a packet ends before all of its fields were read.
var ErrShortPacket = errors.New("api: packet too short")

// ReadString reads a string prefixed with its length as a little endian uint32.
func ReadString(buf *bytes.Buffer) (string, error) {
	var length uint32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return "", ErrShortPacket
	}
	if length > maxStringLength {
		return "", fmt.Errorf("string length %d exceeds %d", length, maxStringLength)
	}
	if int(length) > buf.Len() {
		return "", ErrShortPacket
	}
	return string(buf.Next(int(length))), nil
}

// WriteString writes a string prefixed with its length as a little endian uint32.
func WriteString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}
