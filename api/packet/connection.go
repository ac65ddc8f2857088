package packet

import "bytes"

// Results of a ConnectionRequest, carried by the ConnectionResponse.
const (
	ResponseSuccess = iota
	ResponseUnauthorized
	ResponseFail
)

// ConnectionRequest is the first packet sent by an API client. Token is checked against the
// secret of the proxy.
type ConnectionRequest struct {
	Token string
}

// ID ...
func (pk *ConnectionRequest) ID() uint32 {
	return IDConnectionRequest
}

// Encode ...
func (pk *ConnectionRequest) Encode(buf *bytes.Buffer) {
	WriteString(buf, pk.Token)
}

// Decode ...
func (pk *ConnectionRequest) Decode(buf *bytes.Buffer) (err error) {
	pk.Token, err = ReadString(buf)
	return
}

// ConnectionResponse answers a ConnectionRequest. The connection is closed by the proxy unless
// Response is ResponseSuccess.
type ConnectionResponse struct {
	Response uint8
}

// ID ...
func (pk *ConnectionResponse) ID() uint32 {
	return IDConnectionResponse
}

// Encode ...
func (pk *ConnectionResponse) Encode(buf *bytes.Buffer) {
	buf.WriteByte(pk.Response)
}

// Decode ...
func (pk *ConnectionResponse) Decode(buf *bytes.Buffer) error {
	b, err := buf.ReadByte()
	if err != nil {
		return ErrShortPacket
	}
	pk.Response = b
	return nil
}
