package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/tamshai/platform/tools/totp-reset/internal/config"
	"github.com/tamshai/platform/tools/totp-reset/internal/keycloak"
)

// Runner executes the reset workflow: locate, delete if found, recreate via
// partial import, then verify the credentials landed. Authentication happens
// earlier, when the Keycloak client is constructed.
type Runner struct {
	cfg    *config.Config
	kc     *keycloak.Client
	logger *zap.Logger
}

func New(cfg *config.Config, kc *keycloak.Client, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		kc:     kc,
		logger: logger.Named("reset"),
	}
}

// Run drives the workflow to completion. The first failing step aborts the
// run; there is no rollback, re-running the tool is the recovery path.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("looking for existing user", zap.String("username", r.cfg.Username))

	user, err := r.kc.FindUser(ctx, r.cfg.Username)
	if err != nil {
		return fmt.Errorf("look up user %q: %w", r.cfg.Username, err)
	}

	if user != nil {
		r.logger.Info("existing user found, deleting",
			zap.String("username", user.Username),
			zap.String("id", user.ID),
		)
		if err := r.kc.DeleteUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete existing user: %w", err)
		}
		r.logger.Info("user deleted")
	} else {
		r.logger.Info("user not found, nothing to delete")
	}

	r.logger.Info("creating user with password and TOTP credentials",
		zap.String("username", r.cfg.Username),
		zap.String("totp_secret", MaskSecret(r.cfg.TOTPSecret)),
	)
	if err := r.kc.ImportUserWithTOTP(ctx, r.cfg.Username, r.cfg.TOTPSecret, r.cfg.UserPassword); err != nil {
		if errors.Is(err, keycloak.ErrImportSkipped) {
			r.logger.Warn("user was skipped by the import, a conflicting record may still exist")
		}
		return fmt.Errorf("create user: %w", err)
	}
	r.logger.Info("user created")

	if err := r.verify(ctx); err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}

	r.printSummary()
	return nil
}

// verify re-locates the user and confirms both credential kinds are present.
// Absence of the user at this point is a failure: the import claimed to add
// a record.
func (r *Runner) verify(ctx context.Context) error {
	r.logger.Info("verifying credentials")

	user, err := r.kc.FindUser(ctx, r.cfg.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found after import", r.cfg.Username)
	}

	creds, err := r.kc.GetCredentials(ctx, user.ID)
	if err != nil {
		return err
	}

	var hasPassword, hasOTP bool
	for _, cred := range creds {
		label := cred.Label
		if label == "" {
			label = "default"
		}
		r.logger.Info("credential found",
			zap.String("type", cred.Type),
			zap.String("label", label),
		)

		switch cred.Type {
		case "password":
			hasPassword = true
		// Listings report the generic "otp" type, imports use "totp".
		case "otp", "totp":
			hasOTP = true
		}
	}

	if !hasPassword || !hasOTP {
		return fmt.Errorf("missing credentials: password=%t, otp=%t", hasPassword, hasOTP)
	}

	r.logger.Info("user has both password and OTP credentials")
	return nil
}

func (r *Runner) printSummary() {
	r.logger.Info("TOTP configuration complete",
		zap.String("username", r.cfg.Username),
		zap.String("totp_secret", MaskSecret(r.cfg.TOTPSecret)),
	)

	fmt.Println()
	fmt.Println("To generate a one-time code:")
	fmt.Println("  oathtool --totp --base32 \"$TOTP_SECRET\"")
	if code, err := totp.GenerateCode(r.cfg.TOTPSecret, time.Now()); err == nil {
		fmt.Printf("Current code: %s\n", code)
	}
	fmt.Println()
}

// MaskSecret reveals only the first and last four characters of a secret,
// enough to tell secrets apart without disclosing them.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
