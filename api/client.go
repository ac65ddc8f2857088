package api

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cooldogedev/lumen/api/packet"
	"github.com/cooldogedev/lumen/internal"
)

// maxPacketSize bounds packets read from API connections.
const maxPacketSize = 1 << 20

// Client is a connection speaking the API protocol: packets prefixed with their length and id, both
// little endian uint32s.
type Client struct {
	conn net.Conn
	pool packet.Pool

	reader  *bufio.Reader
	writeMu sync.Mutex
}

func NewClient(conn net.Conn, pool packet.Pool) *Client {
	return &Client{
		conn: conn,
		pool: pool,

		reader: bufio.NewReader(conn),
	}
}

func (c *Client) ReadPacket() (pk packet.Packet, err error) {
	var length uint32
	if err := binary.Read(c.reader, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length < 4 || length > maxPacketSize {
		return nil, fmt.Errorf("invalid packet length %d", length)
	}

	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)
	if _, err := io.CopyN(buf, c.reader, int64(length)); err != nil {
		return nil, err
	}

	packetID := binary.LittleEndian.Uint32(buf.Next(4))
	pk, ok := c.pool.New(packetID)
	if !ok {
		return nil, fmt.Errorf("unknown packet ID: %v", packetID)
	}
	if err := pk.Decode(buf); err != nil {
		return nil, fmt.Errorf("decode packet %d: %w", packetID, err)
	}
	return pk, nil
}

func (c *Client) WritePacket(pk packet.Packet) error {
	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	buf.Write(make([]byte, 4))
	_ = binary.Write(buf, binary.LittleEndian, pk.ID())
	pk.Encode(buf)

	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data, uint32(len(data)-4))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(data)
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}
