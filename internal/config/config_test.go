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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 10, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "store-", cfg.Cluster.NamespacePrefix)
	assert.Equal(t, "local-store-tls", cfg.Cluster.TLSSecretName)
	assert.Equal(t, "helm", cfg.Helm.Binary)
	assert.Equal(t, 10*time.Minute, cfg.Provision.Timeout)
	assert.Equal(t, "local.store.dev", cfg.Provision.BaseDomain)
	assert.Equal(t, "nginx", cfg.Provision.IngressClass)
	assert.Equal(t, 100, cfg.Provision.MaxStores)
	assert.Equal(t, time.Minute, cfg.Janitor.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.Janitor.GracePeriod)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/storeforge?sslmode=disable")
	t.Setenv("PROVISION_TIMEOUT", "5m")
	t.Setenv("BASE_DOMAIN", "stores.example.com")
	t.Setenv("MAX_STORES", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Provision.Timeout)
	assert.Equal(t, "stores.example.com", cfg.Provision.BaseDomain)
	assert.Equal(t, 10, cfg.Provision.MaxStores)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects grace period below provision timeout", func(t *testing.T) {
		cfg := base()
		cfg.Janitor.GracePeriod = 5 * time.Minute
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects lone TLS cert", func(t *testing.T) {
		cfg := base()
		cfg.Cluster.TLSCertFile = "/etc/tls/tls.crt"
		assert.Error(t, cfg.Validate())

		cfg.Cluster.TLSKeyFile = "/etc/tls/tls.key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects smtp host without addresses", func(t *testing.T) {
		cfg := base()
		cfg.SMTP.Host = "mail.example.com"
		assert.Error(t, cfg.Validate())

		cfg.SMTP.From = "noreply@example.com"
		assert.Error(t, cfg.Validate())

		cfg.SMTP.To = "ops@example.com"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects nonpositive max stores", func(t *testing.T) {
		cfg := base()
		cfg.Provision.MaxStores = 0
		assert.Error(t, cfg.Validate())
	})
}
