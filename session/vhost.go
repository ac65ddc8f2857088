package session

import "strings"

// CleanVhost returns the host a client connected with, as sent in its handshake. Everything after
// the first NUL character is dropped, which removes the Forge marker ("\x00FML\x00") and data
// appended by other proxies, followed by the trailing dot left by SRV record lookups.
func CleanVhost(hostname string) string {
	cleaned, _, _ := strings.Cut(hostname, "\x00")
	return strings.TrimSuffix(cleaned, ".")
}
