package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/cooldogedev/lumen/compression"
	"github.com/cooldogedev/lumen/protocol"
	"gopkg.in/yaml.v3"
)

type Opts struct {
	// Addr is the address to listen on for Minecraft clients.
	Addr string `yaml:"addr"`
	// Token is the authentication token clients of the admin API have to use.
	Token string `yaml:"token"`
	// APIAddr is the address of the admin API. The API is disabled if it is empty.
	APIAddr string `yaml:"api_addr"`
	// MetricsAddr is the address prometheus metrics are served on. Metrics are not served if it is empty.
	MetricsAddr string `yaml:"metrics_addr"`

	// Server is the address of the primary backend server.
	Server string `yaml:"server"`
	// FallbackServer is tried when the primary server cannot be reached during login.
	FallbackServer string `yaml:"fallback_server"`
	// ForcedHosts maps virtual hosts players connect with to the server they are sent to.
	ForcedHosts map[string]string `yaml:"forced_hosts"`
	// Transport is the transport used to reach backend servers: tcp, quic, kcp or spectral.
	Transport string `yaml:"transport"`
	// Forwarding enables BungeeCord style forwarding of the address and UUID of players in the
	// handshake sent to backend servers.
	Forwarding bool `yaml:"forwarding"`

	// OnlineMode authenticates players with the Mojang session server and encrypts their connection.
	OnlineMode bool `yaml:"online_mode"`
	// MinVersion and MaxVersion restrict the versions accepted, such as "1.8" or "1.16.4".
	MinVersion string `yaml:"min_version"`
	MaxVersion string `yaml:"max_version"`

	// CompressionThreshold is the smallest packet compressed. A negative threshold disables compression.
	CompressionThreshold int `yaml:"compression_threshold"`
	// CompressionLevel is the zlib level used, between 1 and 12, or -1 for the default.
	CompressionLevel int `yaml:"compression_level"`
	// MaxFrameSize is the largest frame read or written, and bounds deflated packets.
	MaxFrameSize int `yaml:"max_frame_size"`
	// WorkerPoolSize is the amount of goroutines compressing large packets.
	WorkerPoolSize int `yaml:"worker_pool_size"`
	// OffloadThreshold is the smallest packet compressed on the worker pool instead of the
	// connection's goroutine.
	OffloadThreshold int `yaml:"offload_threshold"`

	// Motd is shown in the server list.
	Motd string `yaml:"motd"`
	// MaxPlayers is the player limit shown in the server list. It is not enforced.
	MaxPlayers int `yaml:"max_players"`
}

func DefaultOpts() *Opts {
	return &Opts{
		Addr:                 ":25577",
		Server:               "127.0.0.1:25565",
		Transport:            "tcp",
		CompressionThreshold: 256,
		CompressionLevel:     -1,
		MaxFrameSize:         protocol.DefaultMaxFrameSize,
		WorkerPoolSize:       64,
		OffloadThreshold:     1 << 16,
		Motd:                 "A Lumen Proxy",
		MaxPlayers:           500,
	}
}

// LoadOpts reads the YAML file at path on top of DefaultOpts and validates the result.
func LoadOpts(path string) (*Opts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	opts := DefaultOpts()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return opts, nil
}

// Validate checks the options for values the proxy cannot run with.
func (o *Opts) Validate() error {
	if strings.TrimSpace(o.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if strings.TrimSpace(o.Server) == "" {
		return fmt.Errorf("server is required")
	}
	if o.APIAddr != "" && o.Token == "" {
		return fmt.Errorf("token is required when api_addr is set")
	}
	if o.CompressionLevel != -1 && (o.CompressionLevel < compression.MinLevel || o.CompressionLevel > compression.MaxLevel) {
		return fmt.Errorf("%w: compression_level %d", compression.ErrInvalidLevel, o.CompressionLevel)
	}
	if o.MaxFrameSize <= 0 || o.MaxFrameSize > protocol.DefaultMaxFrameSize {
		return fmt.Errorf("max_frame_size must be between 1 and %d", protocol.DefaultMaxFrameSize)
	}
	if o.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive")
	}
	if _, err := o.VersionPolicy(); err != nil {
		return err
	}
	return nil
}

// VersionPolicy returns the policy built from MinVersion and MaxVersion.
func (o *Opts) VersionPolicy() (*protocol.VersionPolicy, error) {
	min, err := versionByName(o.MinVersion)
	if err != nil {
		return nil, fmt.Errorf("min_version: %w", err)
	}
	max, err := versionByName(o.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("max_version: %w", err)
	}
	return protocol.NewVersionPolicy(min, max)
}

func versionByName(name string) (*protocol.Version, error) {
	if name == "" {
		return nil, nil
	}
	v, ok := protocol.VersionByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q, supported versions are %s", protocol.ErrUnsupportedVersion, name, protocol.SupportedVersionString)
	}
	return v, nil
}
