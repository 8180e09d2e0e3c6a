package main

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/peercloud/peercloud"
)

// Config is read from a TOML encoded file. Zero values are replaced by the
// defaults of the peercloud package.
type Config struct {
	// private fields do not get marshalled
	configPath string
	// IPv4 address the socket binds to, all interfaces if empty
	Address string
	// Port of the cloud, registrations are broadcasted on it
	Port int
	// AllowLoopback keeps datagrams sent from this host, to run several
	// peers on the same machine
	AllowLoopback bool
	// Path of the key store database
	KeyStore string
	// Name of the cloud key in the key store. Datagrams are neither signed
	// nor verified if empty.
	Key string
	// Maximum payload bytes per fragment
	FragmentSize int
	// Number of processing workers
	Workers int
	// Capacity of each processing queue
	QueueSize int
	// Maximum out of order packets kept per neighbor, 0 for no limit
	MaxBuffered int
	// Period of the statistics log line, disabled if empty.
	// string because of the TOML encoding of durations
	StatsPeriod string
	// Debug forwards the debug output if set to != 0
	Debug int
}

// DefaultConfig returns the configuration of a peer listening on every
// interface on the default port.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Port:         peercloud.DefaultPort,
		KeyStore:     filepath.Join(home, ".peercloud", "keys.db"),
		FragmentSize: peercloud.DefaultFragmentSize,
		QueueSize:    peercloud.DefaultQueueSize,
	}
}

// LoadConfig looks up the given file to unmarshal a TOML encoded Config on top
// of the default one.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	c.configPath = path
	return c, nil
}

// WriteTo writes the config to the specified file path.
func (c *Config) WriteTo(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(c)
}

// ListenAddress returns the "ip:port" address to bind.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Logger returns the logger set to the right verbosity with timestamp added
func (c *Config) Logger() peercloud.Logger {
	var logger peercloud.Logger
	if c.Debug != 0 {
		logger = peercloud.NewKitLogger(level.AllowDebug())
	} else {
		logger = peercloud.NewKitLogger(level.AllowInfo())
	}
	return logger.With("ts", log.TimestampFormat(time.Now, time.StampMilli))
}

// GetStatsPeriod returns the statistics period, zero if disabled.
func (c *Config) GetStatsPeriod() (time.Duration, error) {
	if c.StatsPeriod == "" {
		return 0, nil
	}
	return time.ParseDuration(c.StatsPeriod)
}

// PeerConfig converts the file config into the peer config. The cloud key
// authenticates both ways: it signs our datagrams and verifies the others.
func (c *Config) PeerConfig(sk peercloud.SecretKey, logger peercloud.Logger) *peercloud.Config {
	conf := &peercloud.Config{
		Port:          uint16(c.Port),
		AllowLoopback: c.AllowLoopback,
		FragmentSize:  c.FragmentSize,
		Workers:       c.Workers,
		QueueSize:     c.QueueSize,
		MaxBuffered:   c.MaxBuffered,
		Logger:        logger,
	}
	if sk != nil {
		conf.SecretKey = sk
		conf.PublicKey = sk.PublicKey()
	}
	return conf
}
