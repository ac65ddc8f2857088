package util

import (
	"encoding/json"

	"github.com/cooldogedev/lumen/protocol"
)

// ServerStatus is the status document shown in the server list of modern clients.
type ServerStatus struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description StatusText    `json:"description"`
	Favicon     string        `json:"favicon,omitempty"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type StatusText struct {
	Text string `json:"text"`
}

// JSON returns the status document sent in a StatusResponse.
func (s ServerStatus) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type StatusProvider struct {
	motd string
}

func NewStatusProvider(motd string) *StatusProvider {
	return &StatusProvider{motd: motd}
}

// ServerStatus returns the status shown to a client of the version passed. Clients with an
// unsupported version are shown the newest version, which marks the server as incompatible.
func (s *StatusProvider) ServerStatus(version *protocol.Version, playerCount int, maxPlayers int) ServerStatus {
	shown := version
	if !protocol.IsSupported(shown) {
		shown = protocol.Maximum
	}
	return ServerStatus{
		Version: StatusVersion{
			Name:     "Lumen " + protocol.SupportedVersionString,
			Protocol: shown.Protocol(),
		},
		Players:     StatusPlayers{Max: maxPlayers, Online: playerCount},
		Description: StatusText{Text: s.motd},
	}
}

// Motd ...
func (s *StatusProvider) Motd() string {
	return s.motd
}
