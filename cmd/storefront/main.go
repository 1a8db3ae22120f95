package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/adminapi"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/webserver"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront catalog, image and contact service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	root.AddCommand(serveCmd(), migrateCmd(), initdbCmd(), sweepCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*app.Application, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		return nil, err
	}
	return application, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()

			webserver.Init(application)
			adminapi.Init()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return webserver.Listen(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	var track bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()
			return application.MigrateDB(track)
		},
	}
	cmd.Flags().BoolVar(&track, "track", false, "log migration SQL")
	return cmd
}

func initdbCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Drop and recreate all tables, then seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("initdb drops every table, rerun with --yes to confirm")
			}
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()
			application.InitDb()
			zap.S().Info("database initialized")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored images no product references",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			report, err := application.SweepOrphans(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("scanned=%d orphaned=%d removed=%d failed=%d\n",
				report.Scanned, report.Orphaned, report.Removed, report.Failed)
			return nil
		},
	}
}
