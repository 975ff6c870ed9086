package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nsawada/reqtrack/internal/backup"
	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/db"
	"github.com/nsawada/reqtrack/internal/filestore"
	"github.com/nsawada/reqtrack/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Launches the JSON API, the transition hooks, and the scheduled backup sweep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	store, err := cas.New(gormDB, cfg.CASRootPath())
	if err != nil {
		return err
	}

	files, err := filestore.New(cfg.GitRootPath())
	if err != nil {
		return err
	}

	var backups *backup.Manager
	if cfg.Database.Driver == "sqlite" {
		backups, err = backup.NewManager(cfg.BackupRootPath(), cfg.Database.Path, cfg.Database.Driver)
		if err != nil {
			return err
		}
	}

	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if backups != nil && cfg.Backup.Schedule != "" {
		sched := backup.NewScheduler(backups, gormDB, cfg.Backup.Schedule, cfg.Backup.KeepDays, cfg.Backup.HistoryDays)
		go sched.Run(ctx)
	}

	return server.Start(ctx, server.StartOpts{
		DB:      gormDB,
		CAS:     store,
		Files:   files,
		Backups: backups,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
}
