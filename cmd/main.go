package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/tamshai/platform/tools/totp-reset/internal/config"
	"github.com/tamshai/platform/tools/totp-reset/internal/keycloak"
	"github.com/tamshai/platform/tools/totp-reset/internal/vault"
	"github.com/tamshai/platform/tools/totp-reset/internal/workflow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totp-reset <environment> [username] [totp-secret] [password]",
		Short: "Reset a Keycloak test user's password and TOTP credential",
		Long: `totp-reset deletes and recreates a test user with a known password and
TOTP secret, so end-to-end suites get a deterministic login identity.

Environments: ` + config.EnvironmentNames() + `

The user password falls back to ` + config.UserPasswordEnv + `. The admin
password is taken from ` + config.AdminPasswordEnv + `, then Vault (when
VAULT_ADDR is set), then an interactive prompt.`,
		Args:          cobra.RangeArgs(1, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	cfg, err := config.Load(args)
	if err != nil {
		logger.Error("configuration error", zap.Error(err))
		return err
	}

	logger.Info("resetting Keycloak test user",
		zap.String("environment", cfg.Environment),
		zap.String("keycloak_url", cfg.BaseURL),
		zap.String("realm", cfg.Realm),
		zap.String("username", cfg.Username),
		zap.String("totp_secret", workflow.MaskSecret(cfg.TOTPSecret)),
	)

	cfg.AdminPassword, err = resolveAdminPassword(cmd, logger)
	if err != nil {
		logger.Error("could not acquire admin password", zap.Error(err))
		return err
	}

	kc, err := keycloak.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("authentication failed", zap.Error(err))
		return err
	}

	if err := workflow.New(cfg, kc, logger).Run(ctx); err != nil {
		logger.Error("reset failed", zap.Error(err))
		return err
	}

	return nil
}

// resolveAdminPassword tries, in order: the environment variable, Vault, and
// finally a masked interactive prompt. A Vault failure is only a warning,
// the prompt still gets its chance.
func resolveAdminPassword(cmd *cobra.Command, logger *zap.Logger) (string, error) {
	if password := os.Getenv(config.AdminPasswordEnv); password != "" {
		return password, nil
	}

	if vault.Configured() {
		password, err := vault.FetchAdminPassword(cmd.Context(), logger)
		if err == nil {
			return password, nil
		}
		logger.Warn("vault lookup failed, falling back to prompt", zap.Error(err))
	}

	return promptPassword("Enter Keycloak admin password: ")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal: set %s", config.AdminPasswordEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("empty admin password")
	}
	return string(password), nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger
}
