package meta

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to options omitted from the configuration file.
const (
	DefaultListenAddress        = "0.0.0.0:53"
	DefaultMaxConcurrentQueries = 64
	DefaultUpstreamAddress      = "8.8.8.8:53"
	DefaultUpstreamTimeout      = 2 * time.Second
	DefaultSinkAddress          = "0.0.0.0"
	DefaultBlockTTL             = 60
)

// ConfigError reports an invalid startup configuration. It is always fatal.
type ConfigError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

func configErrorf(format string, v ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, v...)}
}

// ApplicationConfig is a top-level block for application-level meta configuration.
type ApplicationConfig struct {
	SentryDSN string `yaml:"sentry_dsn"`
}

// MetricsConfig is a top-level block for metrics configuration.
type MetricsConfig struct {
	Statsd *struct {
		Address    string  `yaml:"addr"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"statsd"`
}

// ListenerConfig is a top-level block for server listener configuration.
type ListenerConfig struct {
	UDP *UDPListenerConfig `yaml:"udp"`
}

// UDPListenerConfig describes the UDP socket queries are received on.
type UDPListenerConfig struct {
	Address              string `yaml:"addr"`
	MaxConcurrentQueries int    `yaml:"max_concurrent_queries"`
}

// UpstreamConfig is a top-level block for the upstream resolver.
type UpstreamConfig struct {
	Address string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// PolicyConfig is a top-level block describing which names are blocked and how they are answered.
type PolicyConfig struct {
	SinkAddress   string   `yaml:"sink_addr"`
	TTL           int      `yaml:"ttl"`
	BlocklistPath string   `yaml:"blocklist_path"`
	Blocklist     []string `yaml:"blocklist"`
}

// Sink returns the parsed sink address.
func (p *PolicyConfig) Sink() net.IP {
	return net.ParseIP(p.SinkAddress).To4()
}

// Config describes all application configuration options.
type Config struct {
	Application *ApplicationConfig `yaml:"application"`
	Metrics     *MetricsConfig     `yaml:"metrics"`
	Listener    *ListenerConfig    `yaml:"listener"`
	Upstream    *UpstreamConfig    `yaml:"upstream"`
	Policy      *PolicyConfig      `yaml:"policy"`
}

// ParseConfig parses a Config struct instance from a file specified as a path on disk. Omitted
// options take their defaults. Any failure is a *ConfigError.
func ParseConfig(path string) (*Config, error) {
	if path == "" {
		return nil, configErrorf("no config file specified")
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, configErrorf("error reading config: err=%v", err)
	}

	var cfg *Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configErrorf("error parsing config: err=%v", err)
	}

	if cfg == nil {
		cfg = &Config{}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in every omitted block and option.
func (c *Config) applyDefaults() {
	if c.Listener == nil {
		c.Listener = &ListenerConfig{}
	}
	if c.Listener.UDP == nil {
		c.Listener.UDP = &UDPListenerConfig{}
	}
	if c.Listener.UDP.Address == "" {
		c.Listener.UDP.Address = DefaultListenAddress
	}
	if c.Listener.UDP.MaxConcurrentQueries == 0 {
		c.Listener.UDP.MaxConcurrentQueries = DefaultMaxConcurrentQueries
	}

	if c.Upstream == nil {
		c.Upstream = &UpstreamConfig{}
	}
	if c.Upstream.Address == "" {
		c.Upstream.Address = DefaultUpstreamAddress
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}

	if c.Policy == nil {
		c.Policy = &PolicyConfig{}
	}
	if c.Policy.SinkAddress == "" {
		c.Policy.SinkAddress = DefaultSinkAddress
	}
	if c.Policy.TTL == 0 {
		c.Policy.TTL = DefaultBlockTTL
	}
}

// validate the contents of the configuration. Returns an error if validation failed; nil otherwise.
func (c *Config) validate() error {
	/* Metrics */

	// Users can omit the metrics block entirely to disable metrics reporting.
	if c.Metrics != nil && c.Metrics.Statsd != nil {
		if c.Metrics.Statsd.Address == "" {
			return configErrorf("missing metrics statsd address")
		}

		if c.Metrics.Statsd.SampleRate < 0 || c.Metrics.Statsd.SampleRate > 1 {
			return configErrorf("statsd sample rate must be in range [0.0, 1.0]")
		}
	}

	/* Listener */

	if _, _, err := net.SplitHostPort(c.Listener.UDP.Address); err != nil {
		return configErrorf("invalid UDP listening address: addr=%s err=%v", c.Listener.UDP.Address, err)
	}

	if c.Listener.UDP.MaxConcurrentQueries < 0 {
		return configErrorf(
			"max concurrent queries must be positive: max_concurrent_queries=%d",
			c.Listener.UDP.MaxConcurrentQueries,
		)
	}

	/* Upstream */

	if host, port, err := net.SplitHostPort(c.Upstream.Address); err != nil || host == "" || port == "" {
		return configErrorf("invalid upstream address: addr=%s", c.Upstream.Address)
	}

	if c.Upstream.Timeout < 0 {
		return configErrorf("upstream timeout must be positive: timeout=%v", c.Upstream.Timeout)
	}

	/* Policy */

	if c.Policy.Sink() == nil {
		return configErrorf("sink address must be an IPv4 address: sink_addr=%s", c.Policy.SinkAddress)
	}

	if c.Policy.TTL < 0 || c.Policy.TTL > 1<<31-1 {
		return configErrorf("block TTL out of range: ttl=%d", c.Policy.TTL)
	}

	if c.Policy.BlocklistPath != "" {
		if _, err := os.Stat(c.Policy.BlocklistPath); err != nil {
			return configErrorf("blocklist file is not readable: path=%s err=%v", c.Policy.BlocklistPath, err)
		}
	}

	return nil
}
