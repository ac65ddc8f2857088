package api

import (
	"errors"
	"fmt"
	"net"

	"github.com/cooldogedev/lumen/api/packet"
)

// Dial establishes a TCP connection to the specified API service address using the provided token.
// It returns a new Client instance if the connection and authentication are successful.
// Otherwise, it returns an error indicating the failure reason.
func Dial(addr, token string) (c *Client, err error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()
	c = NewClient(conn, packet.NewPool())

	if err := c.WritePacket(&packet.ConnectionRequest{Token: token}); err != nil {
		return nil, err
	}

	connectionResponsePacket, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}

	connectionResponse, ok := connectionResponsePacket.(*packet.ConnectionResponse)
	if !ok {
		return nil, fmt.Errorf("expected connection response, got %d", connectionResponsePacket.ID())
	}

	switch connectionResponse.Response {
	case packet.ResponseSuccess:
		return c, nil
	case packet.ResponseFail:
		return nil, errors.New("connection failed")
	case packet.ResponseUnauthorized:
		return nil, errors.New("connection unauthorized")
	}
	return nil, fmt.Errorf("received an unknown response code %d", connectionResponse.Response)
}
