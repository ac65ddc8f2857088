package packet

// Pool creates empty packets to decode into, indexed by their ID.
type Pool map[uint32]func() Packet

// NewPool returns a Pool holding every packet of the API protocol.
func NewPool() Pool {
	return Pool{
		IDConnectionRequest:  func() Packet { return &ConnectionRequest{} },
		IDConnectionResponse: func() Packet { return &ConnectionResponse{} },
		IDKick:               func() Packet { return &Kick{} },
		IDHeaderAndFooter:    func() Packet { return &HeaderAndFooter{} },
	}
}

// New returns an empty packet with the ID passed, or false if no such packet exists.
func (p Pool) New(id uint32) (Packet, bool) {
	factory, ok := p[id]
	if !ok {
		return nil, false
	}
	return factory(), true
}
