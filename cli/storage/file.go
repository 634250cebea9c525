package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// fileProvider stores objects below a local directory. It backs the
// one-shot CLI and tests where no bucket is available.
type fileProvider struct {
	cfg  Config
	root string
}

func newFileProvider(cfg Config) (Provider, error) {
	root := cfg.Root
	if root == "" {
		root = cfg.Bucket
	}
	if root == "" {
		return nil, fmt.Errorf("file storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &fileProvider{cfg: cfg, root: abs}, nil
}

func (p *fileProvider) path(key string) string {
	return filepath.Join(p.root, filepath.FromSlash(ResolveKey(p.cfg.Prefix, key)))
}

func (p *fileProvider) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *fileProvider) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (ObjectInfo, error) {
	target := p.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create object directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create object file: %w", err)
	}
	written, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to write object file: %w", err)
	}
	return ObjectInfo{Key: ResolveKey(p.cfg.Prefix, key), Size: written}, nil
}

func (p *fileProvider) DownloadText(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *fileProvider) PublicURL(key string) string {
	if p.cfg.PublicBaseURL != "" {
		return joinURL(p.cfg.PublicBaseURL, ResolveKey(p.cfg.Prefix, key))
	}
	return joinURL("file://"+filepath.ToSlash(p.root), ResolveKey(p.cfg.Prefix, key))
}

func (p *fileProvider) Close() error {
	return nil
}
