// Package lumen implements a proxy for Minecraft: Java Edition. It accepts clients from 1.7.2 to
// 1.16.4, answers server list pings, logs players in and relays their packets to backend servers.
package lumen

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/cooldogedev/lumen/auth"
	"github.com/cooldogedev/lumen/compression"
	"github.com/cooldogedev/lumen/internal/worker"
	"github.com/cooldogedev/lumen/minecraft"
	"github.com/cooldogedev/lumen/protocol"
	"github.com/cooldogedev/lumen/server"
	"github.com/cooldogedev/lumen/session"
	tr "github.com/cooldogedev/lumen/transport"
	"github.com/cooldogedev/lumen/util"
)

type Proxy struct {
	discovery server.Discovery
	transport tr.Transport

	listener net.Listener
	registry *session.Registry
	pool     *worker.Pool

	policy        *protocol.VersionPolicy
	status        *util.StatusProvider
	authenticator auth.Authenticator
	keys          *auth.KeyPair

	logger *slog.Logger
	opts   util.Opts
}

// NewProxy creates a proxy sending players to the servers found by discovery. Nil options select
// util.DefaultOpts and a nil transport selects TCP.
func NewProxy(discovery server.Discovery, logger *slog.Logger, opts *util.Opts, transport tr.Transport) (*Proxy, error) {
	if opts == nil {
		opts = util.DefaultOpts()
	}
	if transport == nil {
		transport = tr.NewTCP()
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := opts.VersionPolicy()
	if err != nil {
		return nil, err
	}
	pool, err := worker.NewPool(opts.WorkerPoolSize, logger)
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		discovery: discovery,
		transport: transport,

		registry: session.NewRegistry(),
		pool:     pool,

		policy: policy,
		status: util.NewStatusProvider(opts.Motd),

		logger: logger,
		opts:   *opts,
	}
	if opts.OnlineMode {
		keys, err := auth.GenerateKeyPair()
		if err != nil {
			pool.Release()
			return nil, err
		}
		p.keys = keys
		p.authenticator = auth.NewMojangAuthenticator("", false)
	}
	return p, nil
}

// Listen starts listening for clients on the address of the options.
func (p *Proxy) Listen() error {
	listener, err := net.Listen("tcp", p.opts.Addr)
	if err != nil {
		p.logger.Error("failed to listen", "err", err)
		return err
	}

	p.listener = listener
	p.logger.Info("started listening", "addr", listener.Addr(), "versions", p.policy)
	return nil
}

// Accept accepts the next client and starts serving it on a new goroutine.
func (p *Proxy) Accept() (*session.Session, error) {
	c, err := p.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	if tcpConn, ok := c.(*net.TCPConn); ok {
		tr.ConfigureTCP(tcpConn)
	}

	conn := minecraft.NewConn(c, p.connConfig(protocol.Serverbound))
	s := session.NewSession(conn, session.Config{
		Opts:      &p.opts,
		Policy:    p.policy,
		Status:    p.status,
		Discovery: p.discovery,
		Dialer: server.Dialer{
			Transport:  p.transport,
			Forwarding: p.opts.Forwarding,
			Config:     p.connConfig(protocol.Clientbound),
			Logger:     p.logger,
		},
		Authenticator: p.authenticator,
		Keys:          p.keys,
		Registry:      p.registry,
		Logger:        p.logger,
	})
	go s.Serve()
	p.logger.Debug("accepted connection", "addr", c.RemoteAddr().String())
	return s, nil
}

func (p *Proxy) connConfig(dir protocol.Direction) minecraft.Config {
	return minecraft.Config{
		Direction:        dir,
		MaxFrameSize:     p.opts.MaxFrameSize,
		CompressionLevel: p.opts.CompressionLevel,
		Compressor:       compression.ZlibFactory(p.opts.MaxFrameSize),
		Pool:             p.pool,
		OffloadThreshold: p.opts.OffloadThreshold,
		Logger:           p.logger,
	}
}

// Addr returns the address the proxy listens on.
func (p *Proxy) Addr() net.Addr {
	return p.listener.Addr()
}

func (p *Proxy) Discovery() server.Discovery {
	return p.discovery
}

func (p *Proxy) Opts() util.Opts {
	return p.opts
}

func (p *Proxy) Registry() *session.Registry {
	return p.registry
}

func (p *Proxy) Transport() tr.Transport {
	return p.transport
}

// Close stops accepting clients and disconnects every player.
func (p *Proxy) Close() error {
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	for _, s := range p.registry.GetSessions() {
		s.Disconnect("Proxy is shutting down.")
	}
	p.pool.Release()
	return err
}
