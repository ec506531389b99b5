// Package backup writes encrypted SQLite snapshots to the S3 bucket and
// restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/larder/internal/blob"
	_ "modernc.org/sqlite"
)

const (
	prefix    = "backups/"
	suffix    = ".db.enc"
	keyLayout = "20060102T150405Z"
)

var ErrNotConfigured = errors.New("backup not configured: bucket or passphrase missing")

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	S3         blob.Config
	Passphrase string
	// Retention is how long snapshots are kept. Zero keeps everything.
	Retention time.Duration
}

func (c Config) Enabled() bool {
	return c.S3.Enabled() && c.Passphrase != ""
}

// Backup describes one stored snapshot.
type Backup struct {
	Key       string
	Size      int64
	CreatedAt time.Time
}

type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	now    func() time.Time
	logger *slog.Logger
}

// NewManager returns a Manager, or ErrNotConfigured when the bucket or the
// passphrase is missing.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &Manager{
		cfg:    cfg,
		db:     db,
		client: blob.NewClient(cfg.S3),
		now:    time.Now,
		logger: logger.With("component", "backup"),
	}, nil
}

// Create snapshots the database with VACUUM INTO, seals it and uploads it.
func (m *Manager) Create(ctx context.Context) (*Backup, error) {
	dir, err := os.MkdirTemp("", "larder-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	created := m.now().UTC()
	key := prefix + "larder-" + created.Format(keyLayout) + suffix
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	}); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	m.logger.Info("backup created", "key", key, "bytes", len(sealed))
	return &Backup{Key: key, Size: int64(len(sealed)), CreatedAt: created}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Backup, error) {
	var backups []Backup
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(prefix),
	}
	for {
		out, err := m.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			b := Backup{Key: key, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				b.CreatedAt = *obj.LastModified
			}
			backups = append(backups, b)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Key > backups[j].Key })
	return backups, nil
}

// Prune deletes snapshots older than the retention window. The newest
// snapshot is always kept.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.cfg.Retention <= 0 {
		return 0, nil
	}
	backups, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-m.cfg.Retention)
	deleted := 0
	for i, b := range backups {
		if i == 0 || !b.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(b.Key),
		}); err != nil {
			m.logger.Warn("failed to delete backup", "key", b.Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Restore downloads and opens the snapshot at key, checks its integrity and
// replaces the database file at dbPath. The server must not be running.
func (m *Manager) Restore(ctx context.Context, key, dbPath string) error {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	sealed, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	staged := dbPath + ".restore"
	if err := os.WriteFile(staged, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(staged)

	if err := checkIntegrity(ctx, staged); err != nil {
		return err
	}
	if err := os.Rename(staged, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dbPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Run creates a snapshot and prunes old ones every interval until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Create(ctx); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
				continue
			}
			if n, err := m.Prune(ctx); err != nil {
				m.logger.Error("backup prune failed", "error", err)
			} else if n > 0 {
				m.logger.Info("pruned backups", "count", n)
			}
		}
	}
}
