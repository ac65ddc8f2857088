package util

import (
	"encoding/json"
	"testing"

	"github.com/cooldogedev/lumen/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStatus(t *testing.T) {
	provider := NewStatusProvider("A Lumen Proxy")
	assert.Equal(t, "A Lumen Proxy", provider.Motd())

	t.Run("supported", func(t *testing.T) {
		status := provider.ServerStatus(protocol.Minecraft1_8, 3, 100)
		assert.Equal(t, int32(47), status.Version.Protocol)
		assert.Equal(t, "Lumen "+protocol.SupportedVersionString, status.Version.Name)
		assert.Equal(t, StatusPlayers{Max: 100, Online: 3}, status.Players)
	})
	t.Run("unsupported", func(t *testing.T) {
		status := provider.ServerStatus(protocol.Unknown, 0, 10)
		assert.Equal(t, protocol.Maximum.Protocol(), status.Version.Protocol)
	})
}

func TestServerStatusJSON(t *testing.T) {
	s, err := NewStatusProvider("motd").ServerStatus(protocol.Minecraft1_8, 1, 2).JSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	assert.Equal(t, map[string]any{"text": "motd"}, doc["description"])
	assert.Equal(t, map[string]any{"max": float64(2), "online": float64(1)}, doc["players"])
	assert.NotContains(t, doc, "favicon")
}
