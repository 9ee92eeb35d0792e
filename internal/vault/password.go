package vault

import (
	"context"
	"fmt"
	"os"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

const (
	// DefaultSecretPath is the KV-v2 location of the Keycloak admin
	// credentials, overridable via VAULT_ADMIN_SECRET_PATH.
	DefaultSecretPath = "secret/data/keycloak/admin"

	passwordField = "password"
)

// Configured reports whether a Vault address is present in the environment.
// When it is not, the caller falls through to the interactive prompt.
func Configured() bool {
	return os.Getenv(vaultapi.EnvVaultAddress) != ""
}

// FetchAdminPassword reads the Keycloak admin password from Vault using the
// ambient VAULT_ADDR / VAULT_TOKEN environment. Both KV v2 (nested "data")
// and KV v1 (flat) layouts are handled.
func FetchAdminPassword(ctx context.Context, logger *zap.Logger) (string, error) {
	log := logger.Named("vault")

	cfg := vaultapi.DefaultConfig()
	cfg.Timeout = 30 * time.Second

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return "", fmt.Errorf("create vault client: %w", err)
	}
	if client.Token() == "" {
		return "", fmt.Errorf("no vault token available: set %s", vaultapi.EnvVaultToken)
	}

	path := os.Getenv("VAULT_ADMIN_SECRET_PATH")
	if path == "" {
		path = DefaultSecretPath
	}

	log.Info("fetching admin password from vault", zap.String("path", path))

	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret at vault path %s", path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	password, ok := data[passwordField].(string)
	if !ok || password == "" {
		return "", fmt.Errorf("secret at %s has no %q field", path, passwordField)
	}

	log.Info("admin password retrieved from vault")
	return password, nil
}
