package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPublicBase = "https://storage.googleapis.com"

type gcsProvider struct {
	cfg    Config
	client *storage.Client
}

func newGCSProvider(ctx context.Context, cfg Config) (Provider, error) {
	options := []option.ClientOption{}
	if strings.TrimSpace(cfg.GCPCredentialsJSON) != "" {
		options = append(options, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	} else if strings.TrimSpace(cfg.GCPCredentialsFile) != "" {
		options = append(options, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &gcsProvider{cfg: cfg, client: client}, nil
}

func (p *gcsProvider) object(key string) *storage.ObjectHandle {
	return p.client.Bucket(p.cfg.Bucket).Object(ResolveKey(p.cfg.Prefix, key))
}

func (p *gcsProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *gcsProvider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error) {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	writer := p.client.Bucket(p.cfg.Bucket).Object(remoteKey).NewWriter(ctx)
	writer.ContentType = contentType
	written, err := io.Copy(writer, body)
	if err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return ObjectInfo{}, closeErr
		}
		return ObjectInfo{}, err
	}
	if err := writer.Close(); err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: remoteKey, Size: written}, nil
}

func (p *gcsProvider) DownloadText(ctx context.Context, key string) (string, error) {
	reader, err := p.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *gcsProvider) PublicURL(key string) string {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	if p.cfg.PublicBaseURL != "" {
		return joinURL(p.cfg.PublicBaseURL, remoteKey)
	}
	return joinURL(gcsPublicBase+"/"+p.cfg.Bucket, remoteKey)
}

func (p *gcsProvider) Close() error {
	return p.client.Close()
}
