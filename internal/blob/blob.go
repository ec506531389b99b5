// Package blob stores item images in S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignTTL is how long a presigned image URL stays valid.
const PresignTTL = 7 * 24 * time.Hour

// handlePrefix marks a stored value as an object handle rather than a URL.
// Handles are resolved on every read; presigned URLs expire.
const handlePrefix = "blob:"

var ErrNotConfigured = errors.New("blob storage not configured")

// IsHandle reports whether s was returned by Upload.
func IsHandle(s string) bool {
	return strings.HasPrefix(s, handlePrefix)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicURL, if set, is a base URL that serves the bucket directly.
	PublicURL string
}

func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	cfg     Config
	client  s3Client
	presign presigner
}

// New returns a Store. Without a bucket and credentials every call fails with
// ErrNotConfigured.
func New(cfg Config) *Store {
	s := &Store{cfg: cfg}
	if cfg.Enabled() {
		c := NewClient(cfg)
		s.client = c
		s.presign = s3.NewPresignClient(c)
	}
	return s
}

// NewClient builds a path-style S3 client with static credentials.
func NewClient(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Store) Configured() bool {
	return s.client != nil
}

// ImageKey is the object key for a shopping item's image.
func ImageKey(userID int64, itemID string) string {
	return fmt.Sprintf("images/%d/%s", userID, itemID)
}

// Upload writes body under key and returns a handle for URL.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return handlePrefix + key, nil
}

// URL resolves a handle, or a bare key, to a fetchable URL.
func (s *Store) URL(ctx context.Context, handle string) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}
	key := strings.TrimPrefix(handle, handlePrefix)
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
