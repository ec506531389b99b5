package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/dukerupert/larder/internal/backup"
	"github.com/dukerupert/larder/internal/blob"
	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/logging"
)

func blobConfig(cfg *config.Config) blob.Config {
	return blob.Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PublicURL: cfg.S3.PublicURL,
	}
}

func backupConfig(cfg *config.Config) backup.Config {
	return backup.Config{
		S3:         blobConfig(cfg),
		Passphrase: cfg.Backup.Passphrase,
		Retention:  time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour,
	}
}

// runBackup handles `larder backup create|list|restore`. Restore replaces the
// database file, so the server must be stopped first.
func runBackup(ctx context.Context, opts docopt.Opts) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Logger.Level, cfg.Logger.Format)

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mgr, err := backup.NewManager(backupConfig(cfg), db, logger)
	if err != nil {
		return err
	}

	if create_, _ := opts.Bool("create"); create_ {
		b, err := mgr.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", b.Key, b.Size)
		if _, err := mgr.Prune(ctx); err != nil {
			return err
		}
		return nil
	}

	if list_, _ := opts.Bool("list"); list_ {
		backups, err := mgr.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Key, b.Size, b.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	}

	key, _ := opts.String("<key>")
	// Release the file before it is replaced.
	db.Close()
	return mgr.Restore(ctx, key, cfg.Server.DBPath)
}
