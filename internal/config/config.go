// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads daemon configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the daemon.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cluster   ClusterConfig
	Helm      HelmConfig
	Provision ProvisionConfig
	DNS       DNSConfig
	SMTP      SMTPConfig
	Janitor   JanitorConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host               string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port               int    `env:"SERVER_PORT" envDefault:"8080"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
}

// DatabaseConfig holds record store configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/storeforge.db"`
}

// ClusterConfig holds cluster access and namespace policy.
type ClusterConfig struct {
	Kubeconfig      string `env:"KUBECONFIG"`
	InCluster       bool   `env:"IN_CLUSTER" envDefault:"false"`
	NamespacePrefix string `env:"NAMESPACE_PREFIX" envDefault:"store-"`
	TLSCertFile     string `env:"TLS_CERT_FILE"`
	TLSKeyFile      string `env:"TLS_KEY_FILE"`
	TLSSecretName   string `env:"TLS_SECRET_NAME" envDefault:"local-store-tls"`
}

// HelmConfig holds deployment tool configuration.
type HelmConfig struct {
	Binary   string `env:"HELM_BINARY" envDefault:"helm"`
	ChartDir string `env:"CHART_DIR" envDefault:"helm"`
}

// ProvisionConfig holds provisioning policy.
type ProvisionConfig struct {
	Timeout      time.Duration `env:"PROVISION_TIMEOUT" envDefault:"10m"`
	BaseDomain   string        `env:"BASE_DOMAIN" envDefault:"local.store.dev"`
	IngressClass string        `env:"INGRESS_CLASS" envDefault:"nginx"`
	MaxStores    int           `env:"MAX_STORES" envDefault:"100"`
}

// DNSConfig holds the optional DNS registrar endpoint. Empty means the
// no-op registrar.
type DNSConfig struct {
	Endpoint string `env:"DNS_ENDPOINT"`
}

// SMTPConfig holds the optional credentials notifier. Empty host means
// the no-op notifier.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	From     string `env:"SMTP_FROM"`
	To       string `env:"SMTP_TO"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

// JanitorConfig holds the recovery sweep policy.
type JanitorConfig struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	GracePeriod   time.Duration `env:"GRACE_PERIOD" envDefault:"15m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Cluster); err != nil {
		return nil, fmt.Errorf("parsing cluster config: %w", err)
	}
	if err := env.Parse(&cfg.Helm); err != nil {
		return nil, fmt.Errorf("parsing helm config: %w", err)
	}
	if err := env.Parse(&cfg.Provision); err != nil {
		return nil, fmt.Errorf("parsing provision config: %w", err)
	}
	if err := env.Parse(&cfg.DNS); err != nil {
		return nil, fmt.Errorf("parsing dns config: %w", err)
	}
	if err := env.Parse(&cfg.SMTP); err != nil {
		return nil, fmt.Errorf("parsing smtp config: %w", err)
	}
	if err := env.Parse(&cfg.Janitor); err != nil {
		return nil, fmt.Errorf("parsing janitor config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	if c.Provision.MaxStores <= 0 {
		return fmt.Errorf("MAX_STORES must be positive")
	}
	if c.Provision.Timeout <= 0 {
		return fmt.Errorf("PROVISION_TIMEOUT must be positive")
	}

	// A grace period shorter than the provision timeout would let the
	// recovery sweep fail records whose install is still legitimately
	// waiting.
	if c.Janitor.GracePeriod <= c.Provision.Timeout {
		return fmt.Errorf("GRACE_PERIOD (%s) must exceed PROVISION_TIMEOUT (%s)", c.Janitor.GracePeriod, c.Provision.Timeout)
	}
	if c.Janitor.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	if (c.Cluster.TLSCertFile == "") != (c.Cluster.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.SMTP.Host != "" && (c.SMTP.From == "" || c.SMTP.To == "") {
		return fmt.Errorf("SMTP_FROM and SMTP_TO are required when SMTP_HOST is set")
	}

	return nil
}
