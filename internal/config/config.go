// Package config loads config.yml, .env and AUTOANSWER_* overrides into a
// typed Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUTOANSWER"

type Config struct {
	Platform      Platform      `mapstructure:"platform"`
	Browser       Browser       `mapstructure:"browser"`
	LLM           LLM           `mapstructure:"llm"`
	Transcription Transcription `mapstructure:"transcription"`
	Media         Media         `mapstructure:"media"`
	Retry         Retry         `mapstructure:"retry"`
	Timing        Timing        `mapstructure:"timing"`
	Logging       Logging       `mapstructure:"logging"`
	Store         Store         `mapstructure:"store"`
}

type Platform struct {
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Book       string        `mapstructure:"book"`
	LoginURL   string        `mapstructure:"login_url"`
	BookURL    string        `mapstructure:"book_url"`
	PageWait   time.Duration `mapstructure:"page_wait"`
	TabWait    time.Duration `mapstructure:"tab_wait"`
	TaskWait   time.Duration `mapstructure:"task_wait"`
	PageOffset int           `mapstructure:"page_offset"`
	TabOffset  int           `mapstructure:"tab_offset"`
	TaskOffset int           `mapstructure:"task_offset"`
	Resume     bool          `mapstructure:"resume"`
}

type Browser struct {
	Headless      bool          `mapstructure:"headless"`
	SlowMo        time.Duration `mapstructure:"slow_mo"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	StorageState  string        `mapstructure:"storage_state"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
}

type LLM struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
}

type Transcription struct {
	Provider        string `mapstructure:"provider"`
	Model           string `mapstructure:"model"`
	Language        string `mapstructure:"language"`
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Cache           string `mapstructure:"cache"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	RedisPrefix     string `mapstructure:"redis_prefix"`
}

type Media struct {
	CacheDir        string        `mapstructure:"cache_dir"`
	FFmpeg          string        `mapstructure:"ffmpeg"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

type Retry struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	PassScore    float64       `mapstructure:"pass_score"`
	ScoreTimeout time.Duration `mapstructure:"score_timeout"`
}

// Timing holds the fixed pauses the platform widgets need.
type Timing struct {
	Dropdown   time.Duration `mapstructure:"dropdown"`
	DragStep   time.Duration `mapstructure:"drag_step"`
	VideoWatch time.Duration `mapstructure:"video_watch"`
	PeerWait   time.Duration `mapstructure:"peer_wait"`
	DialogWait time.Duration `mapstructure:"dialog_wait"`
	LayoutWait time.Duration `mapstructure:"layout_wait"`
	SubmitWait time.Duration `mapstructure:"submit_wait"`
}

type Logging struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	NoColor    bool   `mapstructure:"no_color"`
}

type Store struct {
	Path string `mapstructure:"path"`
}

// Load reads .env (if present), then path (or ./config.yml when empty),
// expands ${VAR} and ${VAR:default} placeholders and applies AUTOANSWER_*
// environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok {
			if exp := ExpandPlaceholder(s); exp != s {
				v.Set(key, exp)
			}
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ExpandPlaceholder resolves a value that is entirely "${NAME}" or
// "${NAME:default}". An unset NAME without a default expands to "".
func ExpandPlaceholder(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	inner := s[2 : len(s)-1]
	name, def, hasDef := strings.Cut(inner, ":")
	if val, ok := os.LookupEnv(name); ok {
		return val
	}
	if hasDef {
		return def
	}
	return ""
}

// Validate checks what a full run needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Platform.Username == "" {
		errs = append(errs, errors.New("platform.username is required"))
	}
	if c.Platform.Password == "" {
		errs = append(errs, errors.New("platform.password is required"))
	}
	if c.Platform.Book == "" {
		errs = append(errs, errors.New("platform.book is required"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}
	if c.Retry.PassScore < 0 || c.Retry.PassScore > 100 {
		errs = append(errs, errors.New("retry.pass_score must be within 0..100"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.username", "")
	v.SetDefault("platform.password", "")
	v.SetDefault("platform.book", "")
	v.SetDefault("platform.login_url", "https://ucloud.unipus.cn/sso/index.html?service=https%3A%2F%2Fucloud.unipus.cn%2Fhome")
	v.SetDefault("platform.book_url", "https://ucloud.unipus.cn/app/cmgt/resource-detail/%s")
	v.SetDefault("platform.page_wait", 3*time.Second)
	v.SetDefault("platform.tab_wait", 2*time.Second)
	v.SetDefault("platform.task_wait", 2*time.Second)
	v.SetDefault("platform.page_offset", 0)
	v.SetDefault("platform.tab_offset", 0)
	v.SetDefault("platform.task_offset", 0)
	v.SetDefault("platform.resume", false)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.slow_mo", time.Duration(0))
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.action_timeout", 10*time.Second)
	v.SetDefault("browser.storage_state", ".cache/storage.json")
	v.SetDefault("browser.width", 1440)
	v.SetDefault("browser.height", 900)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.timeout", 90*time.Second)
	v.SetDefault("llm.max_attempts", 4)

	v.SetDefault("transcription.provider", "whisper")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.credentials_file", "")
	v.SetDefault("transcription.cache", "memory")
	v.SetDefault("transcription.redis_addr", "localhost:6379")
	v.SetDefault("transcription.redis_password", "")
	v.SetDefault("transcription.redis_db", 0)
	v.SetDefault("transcription.redis_prefix", "autoanswer:transcript:")

	v.SetDefault("media.cache_dir", ".cache")
	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.download_timeout", 2*time.Minute)

	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.pass_score", 60.0)
	v.SetDefault("retry.score_timeout", 2*time.Second)

	v.SetDefault("timing.dropdown", 200*time.Millisecond)
	v.SetDefault("timing.drag_step", 300*time.Millisecond)
	v.SetDefault("timing.video_watch", 10*time.Second)
	v.SetDefault("timing.peer_wait", 2*time.Second)
	v.SetDefault("timing.dialog_wait", time.Second)
	v.SetDefault("timing.layout_wait", 10*time.Second)
	v.SetDefault("timing.submit_wait", 2*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 20)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("store.path", ".cache/progress.db")
}
