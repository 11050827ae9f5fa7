// Package media turns audio and video URLs from the course pages into text.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/polzovatel/autoanswer/internal/config"
)

// ErrNoAudio is returned for an empty media URL.
var ErrNoAudio = errors.New("no media source")

type Kind int

const (
	Audio Kind = iota
	Video
)

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "audio"
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Name() string
}

// Service downloads, extracts and transcribes media once per URL. Concurrent
// requests for the same URL share one transcription.
type Service struct {
	dl      *Downloader
	extract AudioExtractor
	stt     Transcriber
	cache   Cache
	group   singleflight.Group
	closers []func() error
	logger  zerolog.Logger
}

func NewService(dl *Downloader, extract AudioExtractor, stt Transcriber, cache Cache, logger zerolog.Logger) *Service {
	return &Service{dl: dl, extract: extract, stt: stt, cache: cache, logger: logger}
}

// Open wires the service from configuration.
func Open(ctx context.Context, tc config.Transcription, mc config.Media, logger zerolog.Logger) (*Service, error) {
	var (
		stt     Transcriber
		closers []func() error
	)
	switch strings.ToLower(tc.Provider) {
	case "", "whisper":
		w, err := NewWhisper(WhisperConfig{APIKey: tc.APIKey, BaseURL: tc.BaseURL, Model: tc.Model, Language: tc.Language})
		if err != nil {
			return nil, err
		}
		stt = w
	case "gcp":
		g, err := NewGCPSpeech(ctx, tc.CredentialsFile, tc.Language)
		if err != nil {
			return nil, err
		}
		stt = g
		closers = append(closers, g.Close)
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s (use 'whisper' or 'gcp')", tc.Provider)
	}

	var cache Cache
	switch strings.ToLower(tc.Cache) {
	case "", "memory":
		cache = NewMemoryCache()
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: tc.RedisAddr, Password: tc.RedisPassword, DB: tc.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		cache = NewRedisCache(rdb, tc.RedisPrefix)
		closers = append(closers, rdb.Close)
	default:
		return nil, fmt.Errorf("unknown transcript cache: %s (use 'memory' or 'redis')", tc.Cache)
	}

	s := NewService(
		NewDownloader(mc.CacheDir, mc.DownloadTimeout, logger),
		FFmpeg{Bin: mc.FFmpeg},
		stt, cache, logger,
	)
	s.closers = closers
	return s, nil
}

func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Transcribe returns the transcript of rawURL, consulting the cache first.
func (s *Service) Transcribe(ctx context.Context, rawURL string, kind Kind) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", ErrNoAudio
	}
	key := CacheKey(rawURL)
	if text, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("transcript cache read failed")
	} else if ok {
		s.logger.Debug().Str("key", key[:12]).Msg("transcript cache hit")
		return text, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.transcribe(ctx, rawURL, key, kind)
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug().Str("key", key[:12]).Msg("transcription shared")
	}
	return v.(string), nil
}

func (s *Service) transcribe(ctx context.Context, rawURL, key string, kind Kind) (string, error) {
	start := time.Now()
	path, err := s.dl.Fetch(ctx, rawURL, kind)
	if err != nil {
		return "", err
	}
	if kind == Video {
		if path, err = s.extract.Extract(ctx, path); err != nil {
			return "", err
		}
	}
	text, err := s.stt.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.stt.Name(), err)
	}
	if err := s.cache.Put(ctx, key, text); err != nil {
		s.logger.Warn().Err(err).Msg("transcript cache write failed")
	}
	s.logger.Info().
		Str("kind", kind.String()).
		Str("provider", s.stt.Name()).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("transcribed")
	return text, nil
}
