package keycloak

import (
	"context"
	"fmt"

	"github.com/Nerzal/gocloak/v13"
	"go.uber.org/zap"

	"github.com/tamshai/platform/tools/totp-reset/internal/config"
)

// Client wraps GoCloak with an admin token obtained once at construction.
// The tool runs for a few seconds at most, so the token is never refreshed.
type Client struct {
	gc     *gocloak.GoCloak
	cfg    *config.Config
	logger *zap.Logger
	token  string
}

// NewClient creates a Keycloak admin client and performs the password-grant
// login against the master realm (fixed admin-cli client).
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	c := &Client{
		gc:     gocloak.NewClient(cfg.BaseURL),
		cfg:    cfg,
		logger: logger.Named("keycloak"),
	}

	c.logger.Info("authenticating to Keycloak", zap.String("url", cfg.BaseURL))

	jwt, err := c.gc.LoginAdmin(ctx, config.AdminUsername, cfg.AdminPassword, "master")
	if err != nil {
		return nil, fmt.Errorf("admin login: %w", err)
	}
	c.token = jwt.AccessToken

	c.logger.Info("authentication successful")
	return c, nil
}

// Realm returns the configured target realm name.
func (c *Client) Realm() string {
	return c.cfg.Realm
}
