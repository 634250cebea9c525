package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Provider struct {
	cfg    Config
	client *s3.Client
}

func newS3Provider(ctx context.Context, cfg Config) (Provider, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	cfg.Region = region
	options := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" || cfg.SessionToken != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.S3PathStyle {
			o.UsePathStyle = true
		}
	})
	return &s3Provider{cfg: cfg, client: client}, nil
}

func (p *s3Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(ResolveKey(p.cfg.Prefix, key)),
	})
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *s3Provider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error) {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	uploader := manager.NewUploader(p.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(remoteKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: remoteKey, Size: size}, nil
}

func (p *s3Provider) DownloadText(ctx context.Context, key string) (string, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(ResolveKey(p.cfg.Prefix, key)),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *s3Provider) PublicURL(key string) string {
	remoteKey := ResolveKey(p.cfg.Prefix, key)
	switch {
	case p.cfg.PublicBaseURL != "":
		return joinURL(p.cfg.PublicBaseURL, remoteKey)
	case p.cfg.Endpoint != "":
		return joinURL(strings.TrimRight(p.cfg.Endpoint, "/")+"/"+p.cfg.Bucket, remoteKey)
	default:
		return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", p.cfg.Bucket, p.cfg.Region), remoteKey)
	}
}

func (p *s3Provider) Close() error {
	return nil
}
