package server

import "strings"

// ForcedHostDiscovery implements the Discovery interface by sending players to the server
// configured for the virtual host they connected with. Players using any other host are passed to
// the underlying Discovery.
type ForcedHostDiscovery struct {
	hosts map[string]string
	Discovery
}

// NewForcedHostDiscovery creates a ForcedHostDiscovery with the hosts passed, keyed by virtual host.
func NewForcedHostDiscovery(hosts map[string]string, discovery Discovery) *ForcedHostDiscovery {
	lowered := make(map[string]string, len(hosts))
	for host, server := range hosts {
		lowered[strings.ToLower(host)] = server
	}
	return &ForcedHostDiscovery{hosts: lowered, Discovery: discovery}
}

// Discover ...
func (f *ForcedHostDiscovery) Discover(identity *Identity) (string, error) {
	if server, ok := f.hosts[strings.ToLower(identity.VirtualHost)]; ok {
		return server, nil
	}
	return f.Discovery.Discover(identity)
}
