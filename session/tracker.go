package session

import (
	"bytes"
	"sort"
	"sync"

	"github.com/cooldogedev/lumen/protocol/packet"
	"github.com/scylladb/go-set/strset"
)

const (
	legacyRegisterChannel   = "REGISTER"
	legacyUnregisterChannel = "UNREGISTER"
	registerChannel         = "minecraft:register"
	unregisterChannel       = "minecraft:unregister"
)

// Tracker keeps the plugin channels a client registered.
type Tracker struct {
	channels *strset.Set
	mu       sync.Mutex
}

func NewTracker() *Tracker {
	return &Tracker{channels: strset.New()}
}

func (t *Tracker) handlePluginMessage(pk *packet.PluginMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch pk.Channel {
	case legacyRegisterChannel, registerChannel:
		t.channels.Add(splitChannels(pk.Data)...)
	case legacyUnregisterChannel, unregisterChannel:
		t.channels.Remove(splitChannels(pk.Data)...)
	}
}

// Channels returns the registered channels in lexical order.
func (t *Tracker) Channels() []string {
	t.mu.Lock()
	channels := t.channels.List()
	t.mu.Unlock()
	sort.Strings(channels)
	return channels
}

// Registered reports whether the client registered the channel passed.
func (t *Tracker) Registered(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels.Has(channel)
}

func splitChannels(data []byte) []string {
	var channels []string
	for _, channel := range bytes.Split(data, []byte{0}) {
		if len(channel) > 0 {
			channels = append(channels, string(channel))
		}
	}
	return channels
}
