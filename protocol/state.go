package protocol

// State represents the phase of the protocol a connection is in. It selects which packets are
// legal and how they are interpreted.
type State int

const (
	// StateHandshake is the initial state of every connection. The client declares its protocol
	// version and the state it wants to move to.
	StateHandshake State = iota
	// StateStatus answers server list pings and is closed afterwards.
	StateStatus
	// StateLogin negotiates encryption and compression before the player joins.
	StateLogin
	// StatePlay is the steady state in which packets are relayed between client and server.
	StatePlay
	// StateLegacy is used by clients that predate the framed protocol.
	StateLegacy
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateStatus:
		return "Status"
	case StateLogin:
		return "Login"
	case StatePlay:
		return "Play"
	case StateLegacy:
		return "Legacy"
	}
	return "UnknownState"
}

// CanTransition reports whether a connection in state s may move to state next.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateHandshake:
		return next == StateStatus || next == StateLogin || next == StateLegacy
	case StateLogin:
		return next == StatePlay
	}
	return false
}

// Direction is the direction a packet travels in.
type Direction uint8

const (
	// Serverbound packets are sent by the client to the server.
	Serverbound Direction = iota
	// Clientbound packets are sent by the server to the client.
	Clientbound
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Serverbound {
		return Clientbound
	}
	return Serverbound
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}
