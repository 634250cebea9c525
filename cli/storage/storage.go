// Package storage provides durable object storage for run artifacts. A
// Provider hides the concrete backend (GCS, S3, MinIO or a local
// directory) behind upload/exists/download operations and knows how to
// turn an object key into a public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Config describes how to connect to an object store provider.
type Config struct {
	Provider           string
	Bucket             string
	Prefix             string
	Region             string
	Endpoint           string
	AccessKey          string
	SecretKey          string
	SessionToken       string
	S3PathStyle        bool
	UseSSL             bool
	GCPCredentialsFile string
	GCPCredentialsJSON string
	// PublicBaseURL overrides the provider's default public URL scheme
	PublicBaseURL string
	// Root directory for the file provider
	Root string
}

// ObjectInfo captures metadata about a remote object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Provider is a generic object store client.
type Provider interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
	DownloadText(ctx context.Context, key string) (string, error)
	PublicURL(key string) string
	Close() error
}

// NewProvider creates a provider client based on config.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	provider := NormalizeProvider(cfg.Provider)
	if provider == "" {
		return nil, fmt.Errorf("storage provider is required")
	}
	if cfg.Bucket == "" && provider != "file" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	cfg.Provider = provider
	switch provider {
	case "gcs":
		return newGCSProvider(ctx, cfg)
	case "s3":
		return newS3Provider(ctx, cfg)
	case "minio":
		return newMinIOProvider(cfg)
	case "file":
		return newFileProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// NormalizeProvider maps known aliases to provider names.
func NormalizeProvider(value string) string {
	provider := strings.ToLower(strings.TrimSpace(value))
	switch provider {
	case "aws", "s3":
		return "s3"
	case "gcp", "gcs":
		return "gcs"
	case "minio":
		return "minio"
	case "file", "local", "fs":
		return "file"
	default:
		return provider
	}
}

// ResolveKey joins a base prefix with a key without introducing double slashes.
func ResolveKey(prefix string, key string) string {
	cleanPrefix := strings.TrimPrefix(prefix, "/")
	cleanKey := strings.TrimPrefix(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	if strings.HasSuffix(cleanPrefix, "/") {
		return cleanPrefix + cleanKey
	}
	return cleanPrefix + "/" + cleanKey
}

// escapeKey percent-encodes every path segment of a key, so that
// "a b/c" becomes "a%20b/c".
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// joinURL appends an escaped key to a base URL.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + escapeKey(key)
}
