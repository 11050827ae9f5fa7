package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

var downloadRetryDelay = 500 * time.Millisecond

// Downloader keeps fetched media under dir, named by CacheKey, and reuses
// what is already there.
type Downloader struct {
	dir      string
	http     *http.Client
	maxTries uint
	logger   zerolog.Logger
}

func NewDownloader(dir string, timeout time.Duration, logger zerolog.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		dir:      dir,
		http:     &http.Client{Timeout: timeout},
		maxTries: 3,
		logger:   logger,
	}
}

// Fetch returns the local path of rawURL's content. Partial files never
// survive a failed attempt.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, kind Kind) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("cache dir: %w", err)
	}
	target := filepath.Join(d.dir, CacheKey(rawURL)+extension(rawURL, kind))
	if fi, err := os.Stat(target); err == nil && fi.Size() > 0 {
		d.logger.Debug().Str("path", target).Msg("media cache hit")
		return target, nil
	}

	src := NormalizeURL(rawURL)
	op := func() (string, error) {
		return target, d.fetchOnce(ctx, src, target)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = downloadRetryDelay
	start := time.Now()
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(d.maxTries),
		backoff.WithNotify(func(err error, delay time.Duration) {
			d.logger.Info().Err(err).Dur("delay", delay).Str("url", src).Msg("retrying download")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", src, err)
	}
	d.logger.Info().Str("url", src).Dur("took", time.Since(start)).Msg("media downloaded")
	return target, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, src, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}

	tmp, err := os.CreateTemp(d.dir, ".part-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func extension(rawURL string, kind Kind) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	if kind == Video {
		return ".mp4"
	}
	return ".mp3"
}
