package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"recipecost/pkg/auth"
	"recipecost/pkg/config"
	"recipecost/pkg/imagestore"
	"recipecost/pkg/logging"
	"recipecost/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd wires the subcommands. Running the binary without one serves
// the API.
func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:          "recipecost",
		Short:        "Recipe costing API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json or toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the schema and seed the admin account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), configFile, false)
			},
		},
		&cobra.Command{
			Use:   "reset-db",
			Short: "Drop every table, migrate again and seed the admin account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), configFile, true)
			},
		},
		newThumbnailsCmd(&configFile),
	)
	return root
}

func newThumbnailsCmd(configFile *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "Generate missing thumbnails under the upload directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			images := imagestore.New(cfg.UploadBase, cfg.UploadMaxBytes, cfg.ThumbWidth)
			n, err := images.Backfill()
			if err != nil {
				return err
			}
			log.WithField("count", n).Info("thumbnails generated")
			if !watch {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w := imagestore.NewWatcher(images, log)
			w.OnThumbnail = func(src, thumb string) {
				log.WithFields(logrus.Fields{"src": src, "thumb": thumb}).Info("thumbnail generated")
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and thumbnail new files as they appear")
	return cmd
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap(configFile string) (*config.Config, *logrus.Logger, error) {
	boot := logging.New("info", "text")
	cfg, err := config.Load(configFile, boot)
	if err != nil {
		boot.WithError(err).Error("invalid configuration")
		return nil, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func openDB(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := store.Open(cfg.DBDSN, log)
	if err != nil {
		log.WithError(err).Error("database unavailable")
		return nil, err
	}
	return db, nil
}

func seedAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB, log logrus.FieldLogger) error {
	if _, err := store.SeedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword, auth.NewHasher(auth.DefaultCost), log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func runMigrate(ctx context.Context, configFile string, reset bool) error {
	cfg, log, err := bootstrap(configFile)
	if err != nil {
		return err
	}
	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	if reset {
		log.Warn("dropping every table")
		err = store.Reset(db)
	} else {
		err = store.Migrate(db)
	}
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, cfg, db, log); err != nil {
		return err
	}
	log.Info("migration and seeding completed")
	return nil
}

func runServe(ctx context.Context, configFile string) error {
	cfg, log, err := bootstrap(configFile)
	if err != nil {
		return err
	}
	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		if err := store.Migrate(db); err != nil {
			return err
		}
	}
	if err := seedAdmin(ctx, cfg, db, log); err != nil {
		return err
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := newServer(cfg, db, auth.NewHasher(auth.DefaultCost), log)
	if err := srv.images.Ensure(); err != nil {
		return fmt.Errorf("upload directory: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
