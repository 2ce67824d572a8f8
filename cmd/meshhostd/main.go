// Command meshhostd wires configuration, identity, and capability
// registration into a running Host, and blocks until it is signaled to
// stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/veriumnet/meshhost/capability"
	"github.com/veriumnet/meshhost/config"
	"github.com/veriumnet/meshhost/endpoint"
	"github.com/veriumnet/meshhost/host"
	"github.com/veriumnet/meshhost/identity"
	"github.com/veriumnet/meshhost/logging"
	"github.com/veriumnet/meshhost/peer"
	"github.com/veriumnet/meshhost/session"
)

func main() {
	app := &cli.App{
		Name:  "meshhostd",
		Usage: "run the mesh networking host",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "meshhost.toml", Usage: "path to the TOML config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.Root()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := identity.NewFileStore(cfg.DataDir)
	id, err := identity.Load(store)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	log.Info("loaded identity", "id", id.NodeID())

	caps := capability.NewRegistry()
	// Concrete capability plugins are supplied by an embedding program;
	// this daemon ships none of its own.

	hostCfg := host.Config{
		ListenPort:     uint16(cfg.Network.ListenPort),
		IdealPeerCount: cfg.IdealPeerCount,
		Network: endpoint.Preferences{
			AdvertisedIP:           cfg.AdvertisedIP(),
			EnableUPnP:             cfg.Network.EnableUPnP,
			ListenPort:             uint16(cfg.Network.ListenPort),
			LocalNetworkingAllowed: cfg.Network.LocalNetworkingAllowed,
		},
	}

	h := host.New(log, hostCfg, id, caps, noopHandshake{})
	if err := h.Start(nil); err != nil {
		return fmt.Errorf("starting host: %w", err)
	}
	log.Info("host started", "listen_port", h.ListenPort())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Info("status", "listen_port", h.ListenPort(), "peer_count", h.PeerCount())
			continue
		}
		break
	}

	h.Stop()
	log.Info("host stopped")
	return nil
}

// noopHandshake is a placeholder Handshake used when no real transport
// handshake has been wired in; it always fails, which is correct until
// an embedding program supplies a real one.
type noopHandshake struct{}

var errUnimplemented = errors.New("meshhostd: no handshake implementation configured")

func (noopHandshake) Accept(ctx context.Context, conn net.Conn) (session.Handle, error) {
	return nil, errUnimplemented
}

func (noopHandshake) Dial(ctx context.Context, conn net.Conn, expected peer.ID) (session.Handle, error) {
	return nil, errUnimplemented
}
