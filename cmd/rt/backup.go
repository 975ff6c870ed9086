package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nsawada/reqtrack/internal/backup"
	"github.com/nsawada/reqtrack/internal/config"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup and restore commands",
	}

	cmd.AddCommand(newBackupCreateCmd())
	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupCleanupCmd())
	return cmd
}

// backupManager builds a Manager from config. Only sqlite databases can be
// file-copied.
func backupManager(configPath string) (*backup.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("backups require the sqlite driver, not %q", cfg.Database.Driver)
	}
	return backup.NewManager(cfg.BackupRootPath(), cfg.Database.Path, cfg.Database.Driver)
}

func newBackupCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a database backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backupManager(configPath)
			if err != nil {
				return err
			}
			info, err := mgr.Create(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created backup %s (%d bytes)\n", info.BackupName, info.SizeBytes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().StringVar(&name, "name", "", "backup name (default backup_<timestamp>)")
	return cmd
}

func newBackupListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backupManager(configPath)
			if err != nil {
				return err
			}
			list, err := mgr.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED\tSIZE")
			for _, b := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\n",
					b.BackupName, b.CreatedAt.Format("2006-01-02 15:04:05"), b.SizeBytes)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	return cmd
}

func newBackupRestoreCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore a database backup",
		Long:  "Overwrites the live database with the named backup. The current state is saved as a pre_restore backup first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backupManager(configPath)
			if err != nil {
				return err
			}
			info, err := mgr.Restore(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored backup %s\n", info.BackupName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	return cmd
}

func newBackupCleanupCmd() *cobra.Command {
	var (
		configPath string
		keepDays   int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete backups older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backupManager(configPath)
			if err != nil {
				return err
			}
			deleted, err := mgr.CleanupOld(keepDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d old backups\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "reqtrack.yaml", "path to reqtrack config file")
	cmd.Flags().IntVar(&keepDays, "keep-days", 30, "retention window in days")
	return cmd
}
