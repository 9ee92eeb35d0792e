package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Nerzal/gocloak/v13"
	"go.uber.org/zap"
)

// ErrImportSkipped means the partial import endpoint skipped the user
// instead of adding it, usually because a conflicting record still exists.
var ErrImportSkipped = errors.New("partial import skipped the user")

const (
	totpUserLabel = "E2E Test Authenticator"
	emailDomain   = "tamshai.com"
)

// ImportCredential is a credential entry in a partial import payload. The
// TOTP fields are strings and secretData is the raw base32 secret, not a
// JSON-wrapped object: the partial import endpoint rejects the documented
// representation and only accepts this flat shape, with type "totp" rather
// than the "otp" type it reports back on reads.
type ImportCredential struct {
	Type       string `json:"type"`
	Value      string `json:"value,omitempty"`
	Temporary  *bool  `json:"temporary,omitempty"`
	SecretData string `json:"secretData,omitempty"`
	UserLabel  string `json:"userLabel,omitempty"`
	Digits     string `json:"digits,omitempty"`
	Period     string `json:"period,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
	Counter    string `json:"counter,omitempty"`
}

// ImportUser is a user entry in a partial import payload.
type ImportUser struct {
	Username      string             `json:"username"`
	Email         string             `json:"email"`
	FirstName     string             `json:"firstName"`
	LastName      string             `json:"lastName"`
	Enabled       bool               `json:"enabled"`
	EmailVerified bool               `json:"emailVerified"`
	Credentials   []ImportCredential `json:"credentials"`
}

// PartialImportRequest is the body for POST /admin/realms/{realm}/partialImport.
type PartialImportRequest struct {
	Users []ImportUser `json:"users"`
}

// PartialImportResult is the subset of the partial import response the tool
// inspects.
type PartialImportResult struct {
	Added       int `json:"added"`
	Skipped     int `json:"skipped"`
	Overwritten int `json:"overwritten"`
}

// NewImportRequest builds a single-user import payload carrying a
// non-temporary password credential and a TOTP credential (HMAC-SHA1,
// 6 digits, 30 second period).
func NewImportRequest(username, totpSecret, password string) PartialImportRequest {
	return PartialImportRequest{
		Users: []ImportUser{{
			Username:      username,
			Email:         fmt.Sprintf("%s@%s", strings.ReplaceAll(username, ".", "-"), emailDomain),
			FirstName:     "Test",
			LastName:      "Journey",
			Enabled:       true,
			EmailVerified: true,
			Credentials: []ImportCredential{
				{
					Type:      "password",
					Value:     password,
					Temporary: gocloak.BoolP(false),
				},
				{
					Type:       "totp",
					SecretData: totpSecret,
					UserLabel:  totpUserLabel,
					Digits:     "6",
					Period:     "30",
					Algorithm:  "HmacSHA1",
					Counter:    "0",
				},
			},
		}},
	}
}

// ImportUserWithTOTP creates the user through the partial import endpoint.
// GoCloak has no binding for partialImport, and its credential
// representation cannot express the flat TOTP shape, so this goes through
// the underlying resty client directly.
//
// A 200 response with added >= 1 is the only success outcome. A 200 with
// skipped records means a conflicting user survived and is reported as
// ErrImportSkipped so callers can warn accordingly.
func (c *Client) ImportUserWithTOTP(ctx context.Context, username, totpSecret, password string) error {
	var result PartialImportResult

	resp, err := c.gc.RestyClient().R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetHeader("Content-Type", "application/json").
		SetBody(NewImportRequest(username, totpSecret, password)).
		SetResult(&result).
		Post(fmt.Sprintf("%s/admin/realms/%s/partialImport", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Realm))
	if err != nil {
		return fmt.Errorf("partial import request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("partial import failed: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("partial import response",
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Int("overwritten", result.Overwritten),
	)

	switch {
	case result.Added > 0:
		return nil
	case result.Skipped > 0:
		return fmt.Errorf("%w: %s", ErrImportSkipped, username)
	default:
		return fmt.Errorf("partial import added no records: %s", resp.String())
	}
}
