// Command create_user adds an account directly to the database, for
// bootstrapping environments where self-registration is not used.
//
//	go run ./cmd/create_user "Ana Silva" ana@example.com secret1 --admin
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"recipecost/models"
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
	var (
		configFile string
		admin      bool
	)
	cmd := &cobra.Command{
		Use:          "create_user <name> <email> <password>",
		Short:        "Create a user account",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("info", "text")
			cfg, err := config.Load(configFile, log)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DBDSN, log)
			if err != nil {
				return err
			}
			if err := store.Migrate(db); err != nil {
				return err
			}
			role := models.RoleStandard
			if admin {
				role = models.RoleAdmin
			}
			u, err := createUser(cmd.Context(), store.NewUsers(db), auth.NewHasher(auth.DefaultCost), args[0], args[1], args[2], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s id=%d role=%s\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "optional config file")
	cmd.Flags().BoolVar(&admin, "admin", false, "create the account with the admin role")
	return cmd
}

type newUser struct {
	Name     string `json:"name" validate:"required,notblank,max=120"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

func createUser(ctx context.Context, users *store.Users, h *auth.Hasher, name, email, password string, role models.Role) (models.User, error) {
	in := newUser{Name: strings.TrimSpace(name), Email: validate.Email(email), Password: password}
	if err := validate.Struct(in); err != nil {
		return models.User{}, err
	}
	digest, err := h.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{Name: in.Name, Email: in.Email, PasswordHash: digest, Role: role}
	if err := users.Create(ctx, &u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return models.User{}, fmt.Errorf("user %s already exists", in.Email)
		}
		return models.User{}, err
	}
	return u, nil
}
