// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClients(t *testing.T) {
	clients := APIConfig{Clients: "frontend:secret1, ops:secret2:admin,,broken"}.ParseClients()
	require.Len(t, clients, 2)

	assert.Equal(t, APIClient{ID: "frontend", Secret: "secret1", Role: "api"}, clients[0])
	assert.Equal(t, APIClient{ID: "ops", Secret: "secret2", Role: "admin"}, clients[1])
}

func TestParseClientsEmpty(t *testing.T) {
	assert.Empty(t, APIConfig{}.ParseClients())
}

func TestAutoMigrateFlag(t *testing.T) {
	assert.True(t, getEnvAsBool("DB_AUTO_MIGRATE", true))

	t.Setenv("DB_AUTO_MIGRATE", "false")
	assert.False(t, getEnvAsBool("DB_AUTO_MIGRATE", true))

	t.Setenv("DB_AUTO_MIGRATE", "not-a-bool")
	assert.True(t, getEnvAsBool("DB_AUTO_MIGRATE", true))
}

func TestValidateSecretProvider(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		JWT:         JWTConfig{SecretKey: "k"},
		Secrets:     SecretsConfig{Provider: "env"},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Secrets = SecretsConfig{Provider: "file"}
	assert.Error(t, cfg.Validate(), "file provider without a path")

	cfg.Secrets = SecretsConfig{Provider: "aws"}
	assert.Error(t, cfg.Validate(), "aws provider without a secret id")

	cfg.Secrets = SecretsConfig{Provider: "vault"}
	assert.Error(t, cfg.Validate())
}

func TestValidateProductionGuards(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		JWT:         JWTConfig{SecretKey: "your-secret-key-change-in-production"},
		Secrets:     SecretsConfig{Provider: "env"},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = "rotated"
	cfg.Database.Password = ""
	assert.Error(t, cfg.Validate())

	cfg.Database.Password = "pw"
	assert.NoError(t, cfg.Validate())
}
