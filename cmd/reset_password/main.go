// Command reset_password replaces an account's password. Refresh tokens
// issued before stop working.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recipecost/pkg/auth"
	"recipecost/pkg/config"
	"recipecost/pkg/logging"
	"recipecost/pkg/store"
	"recipecost/pkg/validate"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var configFile, email, password string
	cmd := &cobra.Command{
		Use:          "reset_password",
		Short:        "Reset a user's password",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New("info", "text")
			cfg, err := config.Load(configFile, log)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DBDSN, log)
			if err != nil {
				return err
			}
			if err := resetPassword(cmd.Context(), store.NewUsers(db), auth.NewHasher(auth.DefaultCost), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for user %s\n", validate.Email(email))
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "optional config file")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "new plaintext password (6 to 72 chars)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type resetRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

func resetPassword(ctx context.Context, users *store.Users, h *auth.Hasher, email, password string) error {
	req := resetRequest{Email: validate.Email(email), Password: password}
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := users.ByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("user %s: %w", req.Email, err)
	}
	digest, err := h.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return users.SetPassword(ctx, u.ID, digest)
}
