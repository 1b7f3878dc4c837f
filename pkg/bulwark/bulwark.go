package bulwark

import (
	"github.com/LavishGent/bulwark/internal/config"
)

// New creates a client with the default configuration.
func New(opts ...Option) (*Client, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a client from cfg. The configuration is validated
// and must not be modified afterwards.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return newClient(cfg, o)
}

// NewFromFile creates a client from a JSON config file with BULWARK_*
// environment overrides applied.
func NewFromFile(path string, opts ...Option) (*Client, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before creating a client.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
