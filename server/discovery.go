package server

// Discovery defines an interface for discovering servers based on the identity of a player.
type Discovery interface {
	// Discover determines the primary server.
	Discover(identity *Identity) (string, error)
	// DiscoverFallback determines the fallback server, tried when the primary server cannot be
	// reached.
	DiscoverFallback(identity *Identity) (string, error)
}

// StaticDiscovery implements the Discovery interface with static server addresses.
type StaticDiscovery struct {
	server         string
	fallbackServer string
}

// NewStaticDiscovery creates a new StaticDiscovery with the given server addresses.
func NewStaticDiscovery(server string, fallbackServer string) *StaticDiscovery {
	return &StaticDiscovery{
		server:         server,
		fallbackServer: fallbackServer,
	}
}

// Discover ...
func (s *StaticDiscovery) Discover(_ *Identity) (string, error) {
	return s.server, nil
}

// DiscoverFallback ...
func (s *StaticDiscovery) DiscoverFallback(_ *Identity) (string, error) {
	if s.fallbackServer == "" {
		return "", ErrNoFallback
	}
	return s.fallbackServer, nil
}
