package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/model"
)

const (
	// KeyTimeFormat is the timestamp layout used inside report keys.
	KeyTimeFormat = "2006-01-02 15-04-05"
	// ReportFile is the object name of the rendered report.
	ReportFile = "index.html"

	htmlContentType = "text/html; charset=utf-8"
)

// ReportKey returns the destination key of a report published at ts.
func ReportKey(env model.Environment, profile model.Profile, ts time.Time) string {
	return path.Join(string(env), string(profile), ts.Format(KeyTimeFormat), "report", ReportFile)
}

// Publisher uploads rendered reports and returns their public URL.
type Publisher struct {
	logger   zerolog.Logger
	provider Provider
}

// NewPublisher creates a Publisher writing to provider.
func NewPublisher(logger zerolog.Logger, provider Provider) *Publisher {
	return &Publisher{logger: logger, provider: provider}
}

// Publish uploads doc under ReportKey and returns the object's public URL.
func (p *Publisher) Publish(ctx context.Context, doc []byte, env model.Environment, profile model.Profile, ts time.Time) (string, error) {
	key := ReportKey(env, profile, ts)
	info, err := p.provider.Upload(ctx, key, bytes.NewReader(doc), int64(len(doc)), htmlContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload report %q: %w", key, err)
	}
	url := p.provider.PublicURL(key)
	p.logger.Info().
		Str("key", info.Key).
		Str("size", humanize.Bytes(uint64(len(doc)))).
		Str("url", url).
		Msg("Published report")
	return url, nil
}

// DownloadText reads a text object, e.g. a remote build summary.
func (p *Publisher) DownloadText(ctx context.Context, key string) (string, error) {
	return p.provider.DownloadText(ctx, key)
}

// PublicURL exposes the provider's URL scheme for keys written by others.
func (p *Publisher) PublicURL(key string) string {
	return p.provider.PublicURL(key)
}
