package packet

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/cooldogedev/lumen/protocol"
)

// Mapping assigns a packet id to a range of versions. The range starts at the version passed to
// Map and ends before the version passed to Until, or before the next mapping of the same packet if
// Until is not used. The last mapping of a packet extends to the newest version.
type Mapping struct {
	id         int32
	from       *protocol.Version
	until      *protocol.Version
	encodeOnly bool
}

// Map creates a Mapping of id starting at version from.
func Map(id int32, from *protocol.Version) Mapping {
	return Mapping{id: id, from: from}
}

// Until ends the mapping before version v.
func (m Mapping) Until(v *protocol.Version) Mapping {
	m.until = v
	return m
}

// EncodeOnly makes the id only usable for writing the packet.
func (m Mapping) EncodeOnly() Mapping {
	m.encodeOnly = true
	return m
}

// Table holds the packets of one state and direction for a single version. Tables are built once at
// startup and are safe for concurrent use.
type Table struct {
	state     protocol.State
	direction protocol.Direction
	version   *protocol.Version

	factories map[int32]func() Decodable
	ids       map[reflect.Type]int32
}

// State ...
func (t *Table) State() protocol.State {
	return t.state
}

// Direction ...
func (t *Table) Direction() protocol.Direction {
	return t.direction
}

// Version ...
func (t *Table) Version() *protocol.Version {
	return t.version
}

// ID returns the id of the packet in the table.
func (t *Table) ID(pk Packet) (int32, bool) {
	if u, ok := pk.(*Unknown); ok {
		return u.ID, true
	}
	id, ok := t.ids[reflect.TypeOf(pk)]
	return id, ok
}

// Decodes reports whether incoming packets with the id passed are decoded into a concrete type.
func (t *Table) Decodes(id int32) bool {
	_, ok := t.factories[id]
	return ok
}

// Decode decodes the payload of a frame, which starts with the packet id. Ids without a registered
// type produce an Unknown packet.
func (t *Table) Decode(payload []byte) (Packet, error) {
	r := protocol.NewReader(payload)
	id := r.VarInt()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read packet id: %w", err)
	}

	factory, ok := t.factories[id]
	if !ok {
		return &Unknown{ID: id, Payload: r.Remaining()}, nil
	}

	pk := factory()
	if err := pk.Decode(r, t.direction, t.version); err != nil {
		return nil, fmt.Errorf("decode %T (id 0x%02x, %s): %w", pk, id, t.version, err)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode %T (id 0x%02x, %s): %w", pk, id, t.version, err)
	}
	return pk, nil
}

// Encode writes the id of the packet followed by its fields to buf.
func (t *Table) Encode(buf *bytes.Buffer, pk Packet) error {
	id, ok := t.ID(pk)
	if !ok {
		return fmt.Errorf("%w: %T in %s %s for %s", ErrUnregistered, pk, t.direction, t.state, t.version)
	}

	w := protocol.NewWriter(buf)
	w.VarInt(id)
	return pk.Encode(w, t.direction, t.version)
}

// directionRegistry holds one Table per supported version for a state and direction.
type directionRegistry struct {
	tables map[*protocol.Version]*Table
}

func newDirectionRegistry(state protocol.State, dir protocol.Direction) *directionRegistry {
	r := &directionRegistry{tables: make(map[*protocol.Version]*Table)}
	for _, v := range protocol.SupportedVersions() {
		r.tables[v] = &Table{
			state:     state,
			direction: dir,
			version:   v,
			factories: make(map[int32]func() Decodable),
			ids:       make(map[reflect.Type]int32),
		}
	}
	return r
}

func (r *directionRegistry) register(typ reflect.Type, factory func() Decodable, mappings []Mapping) {
	if len(mappings) == 0 {
		panic(fmt.Sprintf("packet: no mappings for %v", typ))
	}
	for i, m := range mappings {
		until := m.until
		if until == nil && i+1 < len(mappings) {
			until = mappings[i+1].from
		}
		if until != nil && !m.from.Before(until) {
			panic(fmt.Sprintf("packet: mapping of %v starts at %s but ends at %s", typ, m.from, until))
		}

		for v, t := range r.tables {
			if v.Before(m.from) || (until != nil && !v.Before(until)) {
				continue
			}
			if _, ok := t.ids[typ]; ok {
				panic(fmt.Sprintf("packet: %v mapped twice for %s", typ, v))
			}
			t.ids[typ] = m.id
			if m.encodeOnly || factory == nil {
				continue
			}
			if _, ok := t.factories[m.id]; ok {
				panic(fmt.Sprintf("packet: id 0x%02x mapped twice for %s", m.id, v))
			}
			t.factories[m.id] = factory
		}
	}
}

// register registers a decodable packet type.
func register[T any, P interface {
	*T
	Decodable
}](r *directionRegistry, mappings ...Mapping) {
	r.register(reflect.TypeFor[P](), func() Decodable { return P(new(T)) }, mappings)
}

// registerEncodeOnly registers a packet type that is never decoded.
func registerEncodeOnly[T any, P interface {
	*T
	Packet
}](r *directionRegistry, mappings ...Mapping) {
	r.register(reflect.TypeFor[P](), nil, mappings)
}

// stateRegistry holds the serverbound and clientbound packets of a state.
type stateRegistry struct {
	serverbound *directionRegistry
	clientbound *directionRegistry
	// fallback makes versions without a table use the table of the oldest version.
	fallback bool
}

func newStateRegistry(state protocol.State, fallback bool) *stateRegistry {
	return &stateRegistry{
		serverbound: newDirectionRegistry(state, protocol.Serverbound),
		clientbound: newDirectionRegistry(state, protocol.Clientbound),
		fallback:    fallback,
	}
}

func (s *stateRegistry) direction(dir protocol.Direction) *directionRegistry {
	if dir == protocol.Serverbound {
		return s.serverbound
	}
	return s.clientbound
}

var registries = map[protocol.State]*stateRegistry{
	protocol.StateHandshake: handshakeRegistry(),
	protocol.StateStatus:    statusRegistry(),
	protocol.StateLogin:     loginRegistry(),
	protocol.StatePlay:      playRegistry(),
}

// Lookup returns the table of packets for the state, direction and version passed. The handshake,
// status and login states use the table of the oldest version for unsupported versions, so that
// clients can still be told their version is not supported. The play state requires a supported
// version.
func Lookup(state protocol.State, dir protocol.Direction, v *protocol.Version) (*Table, error) {
	s, ok := registries[state]
	if !ok {
		return nil, fmt.Errorf("%w: no packets are registered for the %s state", protocol.ErrProtocolViolation, state)
	}
	r := s.direction(dir)
	if t, ok := r.tables[v]; ok {
		return t, nil
	}
	if !s.fallback {
		return nil, fmt.Errorf("%w: %s has no %s %s packets", protocol.ErrUnsupportedVersion, v, dir, state)
	}
	return r.tables[protocol.Minimum], nil
}

func handshakeRegistry() *stateRegistry {
	s := newStateRegistry(protocol.StateHandshake, true)
	register[Handshake](s.serverbound, Map(0x00, protocol.Minimum))
	return s
}

func statusRegistry() *stateRegistry {
	s := newStateRegistry(protocol.StateStatus, true)
	register[StatusRequest](s.serverbound, Map(0x00, protocol.Minimum))
	register[StatusPing](s.serverbound, Map(0x01, protocol.Minimum))

	register[StatusResponse](s.clientbound, Map(0x00, protocol.Minimum))
	register[StatusPing](s.clientbound, Map(0x01, protocol.Minimum))
	return s
}

func loginRegistry() *stateRegistry {
	s := newStateRegistry(protocol.StateLogin, true)
	register[LoginStart](s.serverbound, Map(0x00, protocol.Minimum))
	register[EncryptionResponse](s.serverbound, Map(0x01, protocol.Minimum))
	register[LoginPluginResponse](s.serverbound, Map(0x02, protocol.Minecraft1_13))

	register[Disconnect](s.clientbound, Map(0x00, protocol.Minimum))
	register[EncryptionRequest](s.clientbound, Map(0x01, protocol.Minimum))
	register[LoginSuccess](s.clientbound, Map(0x02, protocol.Minimum))
	register[SetCompression](s.clientbound, Map(0x03, protocol.Minecraft1_8))
	register[LoginPluginMessage](s.clientbound, Map(0x04, protocol.Minecraft1_13))
	return s
}

func playRegistry() *stateRegistry {
	s := newStateRegistry(protocol.StatePlay, false)
	register[Chat](s.serverbound,
		Map(0x01, protocol.Minecraft1_7_2),
		Map(0x02, protocol.Minecraft1_9),
		Map(0x03, protocol.Minecraft1_12),
		Map(0x02, protocol.Minecraft1_12_1),
		Map(0x03, protocol.Minecraft1_14),
	)
	register[PluginMessage](s.serverbound,
		Map(0x17, protocol.Minecraft1_7_2),
		Map(0x09, protocol.Minecraft1_9),
		Map(0x0A, protocol.Minecraft1_12),
		Map(0x09, protocol.Minecraft1_12_1),
		Map(0x0A, protocol.Minecraft1_13),
		Map(0x0B, protocol.Minecraft1_14),
	)
	register[KeepAlive](s.serverbound,
		Map(0x00, protocol.Minecraft1_7_2),
		Map(0x0B, protocol.Minecraft1_9),
		Map(0x0C, protocol.Minecraft1_12),
		Map(0x0B, protocol.Minecraft1_12_1),
		Map(0x0E, protocol.Minecraft1_13),
		Map(0x0F, protocol.Minecraft1_14),
		Map(0x10, protocol.Minecraft1_16),
	)

	register[Chat](s.clientbound,
		Map(0x02, protocol.Minecraft1_7_2),
		Map(0x0F, protocol.Minecraft1_9),
		Map(0x0E, protocol.Minecraft1_13),
		Map(0x0F, protocol.Minecraft1_15),
		Map(0x0E, protocol.Minecraft1_16),
	)
	register[PluginMessage](s.clientbound,
		Map(0x3F, protocol.Minecraft1_7_2),
		Map(0x18, protocol.Minecraft1_9),
		Map(0x19, protocol.Minecraft1_13),
		Map(0x18, protocol.Minecraft1_14),
		Map(0x19, protocol.Minecraft1_15),
		Map(0x18, protocol.Minecraft1_16),
		Map(0x17, protocol.Minecraft1_16_2),
	)
	register[Disconnect](s.clientbound,
		Map(0x40, protocol.Minecraft1_7_2),
		Map(0x1A, protocol.Minecraft1_9),
		Map(0x1B, protocol.Minecraft1_13),
		Map(0x1A, protocol.Minecraft1_14),
		Map(0x1B, protocol.Minecraft1_15),
		Map(0x1A, protocol.Minecraft1_16),
		Map(0x19, protocol.Minecraft1_16_2),
	)
	register[KeepAlive](s.clientbound,
		Map(0x00, protocol.Minecraft1_7_2),
		Map(0x1F, protocol.Minecraft1_9),
		Map(0x21, protocol.Minecraft1_13),
		Map(0x20, protocol.Minecraft1_14),
		Map(0x21, protocol.Minecraft1_15),
		Map(0x20, protocol.Minecraft1_16),
		Map(0x1F, protocol.Minecraft1_16_2),
	)
	registerEncodeOnly[HeaderAndFooter](s.clientbound,
		Map(0x47, protocol.Minecraft1_8).EncodeOnly(),
		Map(0x48, protocol.Minecraft1_9).EncodeOnly(),
		Map(0x47, protocol.Minecraft1_9_4).EncodeOnly(),
		Map(0x49, protocol.Minecraft1_12).EncodeOnly(),
		Map(0x4A, protocol.Minecraft1_12_1).EncodeOnly(),
		Map(0x4E, protocol.Minecraft1_13).EncodeOnly(),
		Map(0x53, protocol.Minecraft1_14).EncodeOnly(),
		Map(0x54, protocol.Minecraft1_15).EncodeOnly(),
		Map(0x53, protocol.Minecraft1_16).EncodeOnly(),
	)
	return s
}
