package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// Environments maps each deployment environment to its Keycloak base URL.
// The set is closed on purpose: free-form URLs would make it too easy to
// reset credentials against an unintended host.
var Environments = map[string]string{
	"dev":   "https://www.tamshai-playground.local/auth",
	"stage": "https://www.tamshai.com/auth",
	"prod":  "https://keycloak-fn44nd7wba-uc.a.run.app/auth",
}

const (
	DefaultUsername   = "test-user.journey"
	DefaultTOTPSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	DefaultRealm      = "tamshai-corp"

	// AdminUsername is the fixed administrator identity used for the
	// password-grant token exchange against the master realm.
	AdminUsername = "admin"

	// Environment variables consulted when the corresponding value is not
	// supplied on the command line.
	UserPasswordEnv  = "TEST_USER_PASSWORD"
	AdminPasswordEnv = "KEYCLOAK_ADMIN_PASSWORD"
)

// Config holds everything the reset workflow needs. AdminPassword is filled
// in by the caller after Load, since acquiring it may involve Vault or an
// interactive prompt.
type Config struct {
	Environment   string
	BaseURL       string
	Realm         string
	Username      string
	TOTPSecret    string
	UserPassword  string
	AdminPassword string
}

// Load parses the positional arguments (environment, then optional username,
// TOTP secret, and password), applies defaults and environment-variable
// fallbacks, and validates everything that can be checked before the first
// network call.
func Load(args []string) (*Config, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing required argument: environment (one of %s)", EnvironmentNames())
	}

	cfg := &Config{
		Environment: args[0],
		Realm:       envOrDefault("KEYCLOAK_REALM", DefaultRealm),
		Username:    DefaultUsername,
		TOTPSecret:  DefaultTOTPSecret,
	}

	if len(args) > 1 {
		cfg.Username = args[1]
	}
	if len(args) > 2 {
		cfg.TOTPSecret = args[2]
	}
	if len(args) > 3 {
		cfg.UserPassword = args[3]
	} else {
		cfg.UserPassword = os.Getenv(UserPasswordEnv)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.BaseURL = Environments[cfg.Environment]
	return cfg, nil
}

func (c *Config) validate() error {
	if _, ok := Environments[c.Environment]; !ok {
		return fmt.Errorf("invalid environment %q: valid environments are %s", c.Environment, EnvironmentNames())
	}

	if c.Username == "" {
		return fmt.Errorf("username must not be empty")
	}

	if c.UserPassword == "" {
		return fmt.Errorf("user password is required: set %s or pass it as the 4th argument", UserPasswordEnv)
	}

	// An undecodable secret would import without complaint and leave the
	// account unusable, so check it before touching the network.
	if _, err := totp.GenerateCode(c.TOTPSecret, time.Now()); err != nil {
		return fmt.Errorf("invalid TOTP secret (not base32): %w", err)
	}

	return nil
}

// EnvironmentNames returns the valid environment names, sorted, as a
// comma-separated string for usage and error messages.
func EnvironmentNames() string {
	names := make([]string, 0, len(Environments))
	for name := range Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
