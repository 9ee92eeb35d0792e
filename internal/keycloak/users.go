package keycloak

import (
	"context"
	"fmt"

	"github.com/Nerzal/gocloak/v13"
	"go.uber.org/zap"
)

// User is the subset of the Keycloak user representation the tool cares
// about. Flat struct on purpose: there is no polymorphism here.
type User struct {
	ID            string
	Username      string
	Email         string
	Enabled       bool
	EmailVerified bool
}

// FindUser looks up a user by exact username match. A nil result with a nil
// error means the user does not exist, which is a normal outcome on the
// first run against a fresh realm.
func (c *Client) FindUser(ctx context.Context, username string) (*User, error) {
	users, err := c.gc.GetUsers(ctx, c.token, c.cfg.Realm, gocloak.GetUsersParams{
		Username: gocloak.StringP(username),
		Exact:    gocloak.BoolP(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	if len(users) == 0 {
		return nil, nil
	}

	user := mapUser(users[0])
	c.logger.Debug("user located",
		zap.String("username", user.Username),
		zap.String("id", user.ID),
	)
	return &user, nil
}

// DeleteUser removes a user by ID. Keycloak answers 204 on success; any
// other status surfaces as an error carrying the status code.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if err := c.gc.DeleteUser(ctx, c.token, c.cfg.Realm, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

// Credential is a flattened credential representation as reported by the
// credential listing endpoint.
type Credential struct {
	ID    string
	Type  string
	Label string
}

// GetCredentials returns the credentials registered for a user. Note that
// the listing endpoint reports TOTP credentials under the generic "otp"
// type, not the "totp" type used when importing.
func (c *Client) GetCredentials(ctx context.Context, userID string) ([]Credential, error) {
	creds, err := c.gc.GetCredentials(ctx, c.token, c.cfg.Realm, userID)
	if err != nil {
		return nil, fmt.Errorf("get credentials for %s: %w", userID, err)
	}

	result := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		result = append(result, Credential{
			ID:    derefString(cred.ID),
			Type:  derefString(cred.Type),
			Label: derefString(cred.UserLabel),
		})
	}
	return result, nil
}

func mapUser(u *gocloak.User) User {
	user := User{
		Enabled:       derefBool(u.Enabled),
		EmailVerified: derefBool(u.EmailVerified),
	}
	if u.ID != nil {
		user.ID = *u.ID
	}
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	return user
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
