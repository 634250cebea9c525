package storage

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioProvider struct {
	cfg    Config
	client *minio.Client
}

func newMinIOProvider(cfg Config) (Provider, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	// minio.New wants host[:port] without a scheme
	if strings.HasPrefix(endpoint, "https://") {
		cfg.UseSSL = true
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	cfg.Endpoint = strings.TrimRight(endpoint, "/")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &minioProvider{cfg: cfg, client: client}, nil
}

func (p *minioProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.cfg.Bucket, ResolveKey(p.cfg.Prefix, key), minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *minioProvider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error) {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	info, err := p.client.PutObject(ctx, p.cfg.Bucket, remoteKey, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: remoteKey, Size: info.Size}, nil
}

func (p *minioProvider) DownloadText(ctx context.Context, key string) (string, error) {
	obj, err := p.client.GetObject(ctx, p.cfg.Bucket, ResolveKey(p.cfg.Prefix, key), minio.GetObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", err
	}
	defer obj.Close()
	// GetObject is lazy; a missing key surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinIONotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", err
	}
	return string(data), nil
}

func (p *minioProvider) PublicURL(key string) string {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	if p.cfg.PublicBaseURL != "" {
		return joinURL(p.cfg.PublicBaseURL, remoteKey)
	}
	scheme := "http"
	if p.cfg.UseSSL {
		scheme = "https"
	}
	return joinURL(fmt.Sprintf("%s://%s/%s", scheme, p.cfg.Endpoint, p.cfg.Bucket), remoteKey)
}

func (p *minioProvider) Close() error {
	return nil
}

func isMinIONotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
