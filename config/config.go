// Package config loads the host's TOML configuration file.
package config

import (
	"net"
	"os"

	"github.com/BurntSushi/toml"
)

// NetworkPreferences mirrors the operator-facing knobs the endpoint
// resolver consumes.
type NetworkPreferences struct {
	AdvertisedIP           string `toml:"advertised_ip"`
	EnableUPnP             bool   `toml:"enable_upnp"`
	ListenPort             int    `toml:"listen_port"`
	LocalNetworkingAllowed bool   `toml:"local_networking_allowed"`
}

// Config is the full host configuration.
type Config struct {
	Network        NetworkPreferences `toml:"network"`
	IdealPeerCount int                `toml:"ideal_peer_count"`
	DataDir        string             `toml:"data_dir"`
	Capabilities   []string           `toml:"capabilities"`
}

// Default returns the baseline configuration. An unspecified listen
// port falls back to 30303 at discovery construction time, so it is
// left at 0 here to signal "unset".
func Default() Config {
	return Config{
		Network: NetworkPreferences{
			ListenPort:             0,
			EnableUPnP:             false,
			LocalNetworkingAllowed: false,
		},
		IdealPeerCount: 5,
		DataDir:        ".",
	}
}

// Load reads and parses a TOML file at path, filling in defaults for
// anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AdvertisedIP parses the configured advertised IP, or nil if unset.
func (c Config) AdvertisedIP() net.IP {
	if c.Network.AdvertisedIP == "" {
		return nil
	}
	return net.ParseIP(c.Network.AdvertisedIP)
}
