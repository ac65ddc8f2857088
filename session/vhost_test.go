package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanVhost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"localhost", "localhost"},
		{"mc.example.com", "mc.example.com"},
		{"localhost.", "localhost"},
		{"mc.example.com.", "mc.example.com"},
		{"localhost\x00FML\x00", "localhost"},
		{"localhost.\x00FML\x00", "localhost"},
		{"mc.example.com\x00127.0.0.1\x00uuid", "mc.example.com"},
		{"", ""},
		{".", ""},
		{"\x00FML\x00", ""},
		{".\x00FML\x00", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanVhost(tt.in), "host %q", tt.in)
	}
}
