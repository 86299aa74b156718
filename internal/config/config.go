// Package config loads client bootstrap configuration: application id,
// endpoint, transport selection, and the tunables the core package exposes
// as constants (transaction retry budget, iterator buffer size). None of
// package store reads configuration directly — this package exists purely
// to construct the plain Go values the facade constructor accepts.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Transport names a concrete store.Dispatch implementation to construct.
type Transport string

const (
	TransportREST Transport = "rest"
	TransportGRPC Transport = "grpc"
)

// Config is the bootstrap configuration for a client.
type Config struct {
	ApplicationID       string    `yaml:"applicationID"`
	Endpoint            string    `yaml:"endpoint"`
	Transport           Transport `yaml:"transport"`
	TransactionRetries  int       `yaml:"transactionRetries"`
	IteratorBufferSize  int       `yaml:"iteratorBufferSize"`
	RequestsPerSecond   float64   `yaml:"requestsPerSecond"`
}

// defaults mirrors the store package's own constants so a config file that
// omits a field falls back to the library's built-in behavior.
func defaults() Config {
	return Config{
		Transport:          TransportREST,
		TransactionRetries: 10,
		IteratorBufferSize: 20,
	}
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration document.
func Parse(data []byte) (Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ApplicationID == "" {
		return fmt.Errorf("config: applicationID is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	switch c.Transport {
	case TransportREST, TransportGRPC:
	default:
		return fmt.Errorf("config: unrecognized transport %q", c.Transport)
	}
	return nil
}
