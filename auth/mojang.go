package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultSessionServer is the endpoint of the Mojang session server confirming logins.
const DefaultSessionServer = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// MojangAuthenticator verifies players with the Mojang session server.
type MojangAuthenticator struct {
	endpoint string
	client   *http.Client
	// preventProxy sends the address of the player so the session server rejects logins made
	// from a different address.
	preventProxy bool
}

// NewMojangAuthenticator creates a MojangAuthenticator querying the endpoint passed, or the Mojang
// session server if it is empty.
func NewMojangAuthenticator(endpoint string, preventProxy bool) *MojangAuthenticator {
	if endpoint == "" {
		endpoint = DefaultSessionServer
	}
	return &MojangAuthenticator{
		endpoint:     endpoint,
		client:       &http.Client{Timeout: time.Second * 10},
		preventProxy: preventProxy,
	}
}

// Authenticate ...
func (m *MojangAuthenticator) Authenticate(ctx context.Context, username, serverID, ip string) (Profile, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("serverId", serverID)
	if m.preventProxy && ip != "" {
		query.Set("ip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("query session server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return Profile{}, ErrNotAuthenticated
	default:
		return Profile{}, fmt.Errorf("session server responded with status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}
