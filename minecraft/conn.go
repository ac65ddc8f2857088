// Package minecraft implements the codec pipeline of a single Minecraft: Java Edition connection:
// optional encryption, length prefixed frames, optional compression and the packet registry.
package minecraft

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/cooldogedev/lumen/compression"
	"github.com/cooldogedev/lumen/internal"
	"github.com/cooldogedev/lumen/internal/cfb8"
	"github.com/cooldogedev/lumen/internal/worker"
	"github.com/cooldogedev/lumen/metrics"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/protocol/packet"
)

const readBufferSize = 4096

// ErrClosed is returned when a closed Conn is used.
var ErrClosed = errors.New("minecraft: connection closed")

// Config holds the settings of a Conn.
type Config struct {
	// Direction is the direction of the packets read from the connection: Serverbound for
	// connections accepted from clients, Clientbound for connections dialed to servers.
	Direction protocol.Direction
	// MaxFrameSize is the largest frame read or written. Zero selects protocol.DefaultMaxFrameSize.
	MaxFrameSize int
	// CompressionLevel is passed to Compressor once compression is enabled. Zero selects
	// compression.DefaultLevel.
	CompressionLevel int
	// Compressor creates the compressor of the connection. Nil selects zlib, with deflated packets
	// bounded by MaxFrameSize.
	Compressor compression.Factory
	// Pool runs deflation of packets of at least OffloadThreshold bytes. Nil deflates inline.
	Pool             *worker.Pool
	OffloadThreshold int
	Logger           *slog.Logger
}

// Conn is a connection speaking the Java Edition protocol. Packets are read by a single goroutine
// through ReadPacket; WritePacket may be called from any goroutine.
type Conn struct {
	conn   io.ReadWriteCloser
	config Config
	logger *slog.Logger

	reader  *protocol.FrameReader
	readBuf []byte
	decrypt cipher.Stream
	// legacyChecked is set once the first bytes of the connection were checked for a legacy client.
	legacyChecked bool

	mu         sync.RWMutex
	state      protocol.State
	version    *protocol.Version
	inbound    *packet.Table
	outbound   *packet.Table
	threshold  int
	compressor compression.Compressor

	writeMu sync.Mutex
	encrypt cipher.Stream

	once   sync.Once
	closed chan struct{}
}

// NewConn creates a Conn in the handshake state over the connection passed.
func NewConn(conn io.ReadWriteCloser, config Config) *Conn {
	if config.MaxFrameSize <= 0 || config.MaxFrameSize > protocol.DefaultMaxFrameSize {
		config.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if config.CompressionLevel == 0 {
		config.CompressionLevel = -1
	}
	if config.Compressor == nil {
		config.Compressor = compression.ZlibFactory(config.MaxFrameSize)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Conn{
		conn:   conn,
		config: config,
		logger: config.Logger,

		reader:  protocol.NewFrameReader(config.MaxFrameSize),
		readBuf: make([]byte, readBufferSize),

		state:     protocol.StateHandshake,
		version:   protocol.Unknown,
		threshold: -1,

		closed: make(chan struct{}),
	}
	c.inbound, c.outbound = c.lookup(protocol.StateHandshake, protocol.Unknown)
	c.recordOpened(protocol.StateHandshake)
	return c
}

// State returns the current state of the connection.
func (c *Conn) State() protocol.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Version returns the protocol version of the connection. It is Unknown until set.
func (c *Conn) Version() *protocol.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// CompressionThreshold returns the compression threshold of the connection, or -1 if compression
// is disabled.
func (c *Conn) CompressionThreshold() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// RemoteAddr returns the address of the other end of the connection, if known.
func (c *Conn) RemoteAddr() net.Addr {
	if conn, ok := c.conn.(interface{ RemoteAddr() net.Addr }); ok {
		return conn.RemoteAddr()
	}
	return nil
}

// SetVersion sets the protocol version used to encode and decode packets.
func (c *Conn) SetVersion(v *protocol.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbound, outbound := c.lookup(c.state, v)
	if c.state != protocol.StateLegacy && (inbound == nil || outbound == nil) {
		return fmt.Errorf("%w: %s cannot be used in the %s state", protocol.ErrUnsupportedVersion, v, c.state)
	}
	c.version, c.inbound, c.outbound = v, inbound, outbound
	return nil
}

// SetState moves the connection to the state passed. Only the transitions allowed by
// protocol.State.CanTransition succeed.
func (c *Conn) SetState(next protocol.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", protocol.ErrIllegalTransition, c.state, next)
	}
	inbound, outbound := c.lookup(next, c.version)
	if next != protocol.StateLegacy && (inbound == nil || outbound == nil) {
		return fmt.Errorf("%w: %s cannot be used in the %s state", protocol.ErrUnsupportedVersion, c.version, next)
	}

	c.recordClosed(c.state)
	c.recordOpened(next)
	c.state, c.inbound, c.outbound = next, inbound, outbound
	return nil
}

func (c *Conn) lookup(state protocol.State, v *protocol.Version) (*packet.Table, *packet.Table) {
	if state == protocol.StateLegacy {
		return nil, nil
	}
	inbound, err := packet.Lookup(state, c.config.Direction, v)
	if err != nil {
		return nil, nil
	}
	outbound, err := packet.Lookup(state, c.config.Direction.Opposite(), v)
	if err != nil {
		return nil, nil
	}
	return inbound, outbound
}

// SetCompressionThreshold enables compression of every packet at least threshold bytes long in both
// directions. A negative threshold disables compression. The compressor is created on first use
// and kept until the connection is closed.
func (c *Conn) SetCompressionThreshold(threshold int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if threshold >= 0 && c.compressor == nil {
		compressor, err := c.config.Compressor(c.config.CompressionLevel)
		if err != nil {
			return fmt.Errorf("create compressor: %w", err)
		}
		c.compressor = compressor
	}
	c.threshold = threshold
	return nil
}

// EnableEncryption encrypts both directions of the connection with AES/CFB8 keyed by the shared
// secret passed. It must be called from the goroutine reading packets, directly after the packet
// that enables encryption was read or written.
func (c *Conn) EnableEncryption(secret []byte) error {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.encrypt = cfb8.NewEncrypter(block, secret)
	c.decrypt = cfb8.NewDecrypter(block, secret)
	// Bytes received together with the last plaintext packet are already encrypted.
	c.reader.Transform(func(b []byte) {
		c.decrypt.XORKeyStream(b, b)
	})
	return nil
}

// ReadPacket reads the next packet from the connection. In the legacy state, or if the first bytes
// of a client connection come from a client older than 1.7, a legacy packet is returned and the
// connection moves to the legacy state.
func (c *Conn) ReadPacket() (packet.Packet, error) {
	for {
		pk, err := c.next()
		if err != nil || pk != nil {
			return pk, err
		}

		select {
		case <-c.closed:
			return nil, ErrClosed
		default:
		}

		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			data := c.readBuf[:n]
			if c.decrypt != nil {
				c.decrypt.XORKeyStream(data, data)
			}
			_, _ = c.reader.Write(data)
		}
		if err != nil {
			return nil, err
		}
	}
}

// next decodes the next packet from the buffered bytes. It returns a nil packet and nil error if
// more bytes are needed.
func (c *Conn) next() (packet.Packet, error) {
	c.mu.RLock()
	state, inbound, threshold, compressor := c.state, c.inbound, c.threshold, c.compressor
	c.mu.RUnlock()

	if !c.legacyChecked && c.config.Direction == protocol.Serverbound && state == protocol.StateHandshake {
		buffered := c.reader.Buffered()
		if len(buffered) == 0 {
			return nil, nil
		}
		if packet.IsLegacy(buffered[0]) {
			pk, err := packet.DecodeLegacy(buffered)
			if errors.Is(err, protocol.ErrIncompleteFrame) {
				return nil, nil
			} else if err != nil {
				return nil, err
			}
			c.legacyChecked = true
			c.reader.Reset()
			if err := c.SetState(protocol.StateLegacy); err != nil {
				return nil, err
			}
			metrics.RecordPacket(protocol.StateLegacy.String(), c.config.Direction.String(), "read")
			return pk, nil
		}
		c.legacyChecked = true
	}
	if state == protocol.StateLegacy {
		return nil, fmt.Errorf("%w: no packets are read in the legacy state", protocol.ErrProtocolViolation)
	}

	frame, err := c.reader.ReadFrame()
	if errors.Is(err, protocol.ErrIncompleteFrame) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	metrics.RecordFrame("read", len(frame))

	payload, err := c.decompress(frame, threshold, compressor)
	if err != nil {
		return nil, err
	}
	pk, err := inbound.Decode(payload)
	if err != nil {
		return nil, err
	}
	metrics.RecordPacket(state.String(), c.config.Direction.String(), "read")
	return pk, nil
}

func (c *Conn) decompress(frame []byte, threshold int, compressor compression.Compressor) ([]byte, error) {
	if threshold < 0 {
		return frame, nil
	}
	size, n, err := protocol.ReadVarInt(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: compression header: %w", protocol.ErrMalformed, err)
	}
	if size == 0 {
		return frame[n:], nil
	}
	if int(size) < threshold {
		return nil, fmt.Errorf("%w: uncompressed size %d is below threshold %d", protocol.ErrMalformed, size, threshold)
	}
	if size > compression.DefaultMaxSize {
		return nil, fmt.Errorf("%w: uncompressed size %d exceeds %d", protocol.ErrFrameTooLarge, size, compression.DefaultMaxSize)
	}

	metrics.RecordCompression("inflate", false)
	payload, err := compressor.Inflate(frame[n:], nil, int(size))
	if err != nil {
		return nil, fmt.Errorf("inflate packet: %w", err)
	}
	return payload, nil
}

// WritePacket encodes and writes a packet to the connection. In the legacy state packets are written
// without id, framing or compression.
func (c *Conn) WritePacket(pk packet.Packet) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.mu.RLock()
	state, version, outbound := c.state, c.version, c.outbound
	c.mu.RUnlock()

	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	if state == protocol.StateLegacy {
		if err := pk.Encode(protocol.NewWriter(buf), c.config.Direction.Opposite(), version); err != nil {
			return err
		}
		return c.write(buf.Bytes())
	}

	if err := outbound.Encode(buf, pk); err != nil {
		return err
	}
	if err := c.writeFrame(buf.Bytes()); err != nil {
		return err
	}
	metrics.RecordPacket(state.String(), c.config.Direction.Opposite().String(), "write")
	return nil
}

// writeFrame compresses the packet body passed if needed and writes it as a single frame.
func (c *Conn) writeFrame(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	threshold, compressor := c.threshold, c.compressor
	c.mu.RUnlock()

	payload := body
	if threshold >= 0 {
		header := protocol.AppendVarInt(make([]byte, 0, 5+len(body)), 0)
		if len(body) < threshold {
			payload = append(header, body...)
		} else {
			compressed, err := c.deflate(compressor, body)
			if err != nil {
				return err
			}
			payload = append(protocol.AppendVarInt(header[:0], int32(len(body))), compressed...)
		}
	}
	if len(payload) > c.config.MaxFrameSize {
		return fmt.Errorf("%w: packet of %d bytes", protocol.ErrFrameTooLarge, len(payload))
	}

	frame := protocol.AppendFrame(make([]byte, 0, len(payload)+3), payload)
	metrics.RecordFrame("write", len(payload))
	return c.writeLocked(frame)
}

func (c *Conn) deflate(compressor compression.Compressor, body []byte) ([]byte, error) {
	pool := c.config.Pool
	if pool == nil || c.config.OffloadThreshold <= 0 || len(body) < c.config.OffloadThreshold {
		metrics.RecordCompression("deflate", false)
		return compressor.Deflate(body, nil)
	}

	var compressed []byte
	err := pool.Do(func() (err error) {
		compressed, err = compressor.Deflate(body, nil)
		return
	})
	metrics.RecordCompression("deflate", true)
	return compressed, err
}

func (c *Conn) write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(b)
}

func (c *Conn) writeLocked(b []byte) error {
	if c.encrypt != nil {
		c.encrypt.XORKeyStream(b, b)
	}
	_, err := c.conn.Write(b)
	return err
}

// Closed returns a channel closed once the connection is closed.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Close closes the connection and releases its compressor. It may be called multiple times.
func (c *Conn) Close() (err error) {
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()

		c.mu.Lock()
		if c.compressor != nil {
			c.compressor.Dispose()
		}
		c.recordClosed(c.state)
		c.mu.Unlock()
	})
	return
}

// recordOpened counts the connection as open in the state passed. Only connections accepted from
// clients are counted, so a player relayed to a server is counted once.
func (c *Conn) recordOpened(state protocol.State) {
	if c.config.Direction == protocol.Serverbound {
		metrics.SessionOpened(state.String())
	}
}

func (c *Conn) recordClosed(state protocol.State) {
	if c.config.Direction == protocol.Serverbound {
		metrics.SessionClosed(state.String())
	}
}
