package packet

import "github.com/cooldogedev/lumen/protocol"

// maxStatusLength is the longest status document a client accepts.
const maxStatusLength = 32767

// StatusRequestHandler handles StatusRequest packets.
type StatusRequestHandler interface {
	HandleStatusRequest(pk *StatusRequest) bool
}

// StatusRequest is sent by clients to request the status of the server for the server list.
type StatusRequest struct{}

// Decode ...
func (*StatusRequest) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	return r.Err()
}

// Encode ...
func (*StatusRequest) Encode(*protocol.Writer, protocol.Direction, *protocol.Version) error {
	return nil
}

// Handle ...
func (pk *StatusRequest) Handle(h Handler) bool {
	if sh, ok := h.(StatusRequestHandler); ok {
		return sh.HandleStatusRequest(pk)
	}
	return false
}

// StatusResponseHandler handles StatusResponse packets.
type StatusResponseHandler interface {
	HandleStatusResponse(pk *StatusResponse) bool
}

// StatusResponse holds the JSON status document shown in the server list.
type StatusResponse struct {
	Status string
}

// Decode ...
func (pk *StatusResponse) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.Status = r.String(maxStatusLength)
	return r.Err()
}

// Encode ...
func (pk *StatusResponse) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.String(pk.Status)
	return nil
}

// Handle ...
func (pk *StatusResponse) Handle(h Handler) bool {
	if sh, ok := h.(StatusResponseHandler); ok {
		return sh.HandleStatusResponse(pk)
	}
	return false
}

// StatusPingHandler handles StatusPing packets.
type StatusPingHandler interface {
	HandleStatusPing(pk *StatusPing) bool
}

// StatusPing is sent by clients to measure latency. The server echoes it back unchanged.
type StatusPing struct {
	RandomID int64
}

// Decode ...
func (pk *StatusPing) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.RandomID = r.Int64()
	return r.Err()
}

// Encode ...
func (pk *StatusPing) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.Int64(pk.RandomID)
	return nil
}

// Handle ...
func (pk *StatusPing) Handle(h Handler) bool {
	if sh, ok := h.(StatusPingHandler); ok {
		return sh.HandleStatusPing(pk)
	}
	return false
}
