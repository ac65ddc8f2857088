package session

import (
	"testing"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileSession(name string) *Session {
	return &Session{profile: auth.OfflineProfile(name)}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	notch := profileSession("Notch")
	require.True(t, r.AddSession(notch.profile.ID, notch))
	assert.Equal(t, 1, r.Count())

	assert.Same(t, notch, r.GetSession(notch.profile.ID))
	assert.Same(t, notch, r.GetSessionByUsername("notch"))
	assert.Nil(t, r.GetSessionByUsername("jeb_"))

	// Neither the UUID nor the username may be registered twice.
	assert.False(t, r.AddSession(notch.profile.ID, profileSession("Notch")))
	other := profileSession("NOTCH")
	assert.False(t, r.AddSession(other.profile.ID, other))

	jeb := profileSession("jeb_")
	require.True(t, r.AddSession(jeb.profile.ID, jeb))
	assert.Len(t, r.GetSessions(), 2)

	// Only the registered session itself can be removed.
	r.RemoveSession(notch.profile.ID, profileSession("Notch"))
	assert.Equal(t, 2, r.Count())
	r.RemoveSession(notch.profile.ID, notch)
	assert.Nil(t, r.GetSession(notch.profile.ID))
	assert.Equal(t, 1, r.Count())
}

func TestTracker(t *testing.T) {
	tracker := NewTracker()
	tracker.handlePluginMessage(&packet.PluginMessage{Channel: "minecraft:register", Data: []byte("b:one\x00a:two\x00")})
	tracker.handlePluginMessage(&packet.PluginMessage{Channel: "REGISTER", Data: []byte("c:three")})
	tracker.handlePluginMessage(&packet.PluginMessage{Channel: "minecraft:brand", Data: []byte("vanilla")})
	assert.Equal(t, []string{"a:two", "b:one", "c:three"}, tracker.Channels())
	assert.True(t, tracker.Registered("b:one"))
	assert.False(t, tracker.Registered("minecraft:brand"))

	tracker.handlePluginMessage(&packet.PluginMessage{Channel: "UNREGISTER", Data: []byte("b:one")})
	tracker.handlePluginMessage(&packet.PluginMessage{Channel: "minecraft:unregister", Data: []byte("c:three\x00missing")})
	assert.Equal(t, []string{"a:two"}, tracker.Channels())
}

func TestContext(t *testing.T) {
	ctx := NewContext()
	assert.False(t, ctx.Cancelled())
	ctx.Cancel()
	assert.True(t, ctx.Cancelled())
}
