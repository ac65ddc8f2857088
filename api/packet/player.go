package packet

import "bytes"

// Kick disconnects the player with the username passed. Reason is shown to the player as plain
// text.
type Kick struct {
	Reason   string
	Username string
}

// ID ...
func (pk *Kick) ID() uint32 {
	return IDKick
}

// Encode ...
func (pk *Kick) Encode(buf *bytes.Buffer) {
	WriteString(buf, pk.Reason)
	WriteString(buf, pk.Username)
}

// Decode ...
func (pk *Kick) Decode(buf *bytes.Buffer) (err error) {
	if pk.Reason, err = ReadString(buf); err != nil {
		return
	}
	pk.Username, err = ReadString(buf)
	return
}

// HeaderAndFooter sets the plain text header and footer of the player list of a player. Empty
// header and footer clear the player list.
type HeaderAndFooter struct {
	Username string
	Header   string
	Footer   string
}

// ID ...
func (pk *HeaderAndFooter) ID() uint32 {
	return IDHeaderAndFooter
}

// Encode ...
func (pk *HeaderAndFooter) Encode(buf *bytes.Buffer) {
	WriteString(buf, pk.Username)
	WriteString(buf, pk.Header)
	WriteString(buf, pk.Footer)
}

// Decode ...
func (pk *HeaderAndFooter) Decode(buf *bytes.Buffer) (err error) {
	if pk.Username, err = ReadString(buf); err != nil {
		return
	}
	if pk.Header, err = ReadString(buf); err != nil {
		return
	}
	pk.Footer, err = ReadString(buf)
	return
}
