package session

import "github.com/cooldogedev/lumen/protocol/packet"

// Context is passed to a Processor with every packet relayed in the play state.
type Context struct {
	cancelled bool
}

// NewContext ...
func NewContext() *Context {
	return &Context{}
}

// Cancel stops the packet from being relayed.
func (c *Context) Cancel() {
	c.cancelled = true
}

// Cancelled reports whether the packet was cancelled.
func (c *Context) Cancelled() bool {
	return c.cancelled
}

// Processor inspects packets relayed between a client and its server. Processors are called from
// the goroutine reading the packet and must not block.
type Processor interface {
	// ProcessServer is called for every packet sent by the server to the client.
	ProcessServer(ctx *Context, pk packet.Packet)
	// ProcessClient is called for every packet sent by the client to the server.
	ProcessClient(ctx *Context, pk packet.Packet)
}

// NopProcessor is a Processor relaying every packet unchanged.
type NopProcessor struct{}

// ProcessServer ...
func (NopProcessor) ProcessServer(*Context, packet.Packet) {}

// ProcessClient ...
func (NopProcessor) ProcessClient(*Context, packet.Packet) {}
