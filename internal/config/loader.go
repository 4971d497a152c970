// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sozzifer/microblog/internal/log"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envStringAlias(key, alias, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	l.ConsumedEnvKeys[alias] = struct{}{}
	return ParseStringWithAlias(key, alias, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envBoolAlias(key, alias string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	l.ConsumedEnvKeys[alias] = struct{}{}
	return ParseBoolWithAlias(key, alias, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envIntAlias(key, alias string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	l.ConsumedEnvKeys[alias] = struct{}{}
	return ParseIntWithAlias(key, alias, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

func (l *Loader) envListAlias(key, alias string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	l.ConsumedEnvKeys[alias] = struct{}{}
	raw := ParseStringWithAlias(key, alias, "")
	if raw == "" {
		return defaultVal
	}
	return SplitList(raw)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is strict: defaults, file (strict parse), env, then validation.
func (l *Loader) Load() (Config, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	// DataDir must be absolute so derived paths survive working-directory
	// changes after startup.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "microblog.db")
	}

	cfg.Version = l.version

	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Listen:       ":8080",
		BaseURL:      "http://localhost:8080",
		DataDir:      "./data",
		SecretKey:    "you-will-never-guess",
		PostsPerPage: 25,
		SessionTTL:   24 * time.Hour,
		RememberTTL:  30 * 24 * time.Hour,
		AutoMigrate:  true,
		LogLevel:     "info",
		Mail: MailConfig{
			Port:          25,
			QueueSize:     64,
			SendTimeout:   30 * time.Second,
			RatePerSecond: 1,
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			LoginPerMinute: 10,
			GlobalRPS:      50,
			GlobalBurst:    100,
		},
		Tracing: TracingConfig{
			Exporter:   "noop",
			SampleRate: 1.0,
		},
		Sink: SinkConfig{
			Listen:          ":1025",
			HTTPListen:      ":8025",
			MaxMessageBytes: 10 << 20,
			MaxRecipients:   100,
			Retention:       500,
		},
		Assets: AssetsConfig{
			TemplatesDir: "./templates",
			ConfigPath:   "./tailwind.config.js",
			InputCSS:     "./static/src/input.css",
			OutputCSS:    "./static/css/app.css",
			TailwindBin:  "tailwindcss",
			BuildTimeout: 2 * time.Minute,
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error to surface misconfiguration early.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *Config, fc *FileConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) {
		if src == nil {
			return
		}
		if d, err := time.ParseDuration(*src); err == nil {
			*dst = d
		} else {
			logger := log.WithComponent("config")
			logger.Warn().
				Str("value", *src).
				Msg("invalid duration in config file, keeping previous value")
		}
	}

	setString(&cfg.Listen, fc.Listen)
	setString(&cfg.BaseURL, fc.BaseURL)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.SecretKey, fc.SecretKey)
	setInt(&cfg.PostsPerPage, fc.PostsPerPage)
	setDuration(&cfg.SessionTTL, fc.SessionTTL)
	setDuration(&cfg.RememberTTL, fc.RememberTTL)
	setBool(&cfg.AutoMigrate, fc.AutoMigrate)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	if fc.TrustedProxies != nil {
		cfg.TrustedProxies = fc.TrustedProxies
	}
	if fc.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}

	if fc.Mail != nil {
		setString(&cfg.Mail.Server, fc.Mail.Server)
		setInt(&cfg.Mail.Port, fc.Mail.Port)
		setBool(&cfg.Mail.UseTLS, fc.Mail.UseTLS)
		setString(&cfg.Mail.Username, fc.Mail.Username)
		setString(&cfg.Mail.Password, fc.Mail.Password)
		if fc.Mail.Admins != nil {
			cfg.Mail.Admins = fc.Mail.Admins
		}
		setInt(&cfg.Mail.QueueSize, fc.Mail.QueueSize)
		setDuration(&cfg.Mail.SendTimeout, fc.Mail.SendTimeout)
		if fc.Mail.RatePerSecond != nil {
			cfg.Mail.RatePerSecond = *fc.Mail.RatePerSecond
		}
	}
	if fc.Metrics != nil {
		setBool(&cfg.Metrics.Enabled, fc.Metrics.Enabled)
		setString(&cfg.Metrics.Listen, fc.Metrics.Listen)
	}
	if fc.RateLimit != nil {
		setBool(&cfg.RateLimit.Enabled, fc.RateLimit.Enabled)
		setInt(&cfg.RateLimit.LoginPerMinute, fc.RateLimit.LoginPerMinute)
		setInt(&cfg.RateLimit.GlobalRPS, fc.RateLimit.GlobalRPS)
		setInt(&cfg.RateLimit.GlobalBurst, fc.RateLimit.GlobalBurst)
	}
	if fc.Tracing != nil {
		setBool(&cfg.Tracing.Enabled, fc.Tracing.Enabled)
		setString(&cfg.Tracing.Exporter, fc.Tracing.Exporter)
		setString(&cfg.Tracing.Endpoint, fc.Tracing.Endpoint)
		if fc.Tracing.SampleRate != nil {
			cfg.Tracing.SampleRate = *fc.Tracing.SampleRate
		}
	}
	if fc.Sink != nil {
		setString(&cfg.Sink.Listen, fc.Sink.Listen)
		setString(&cfg.Sink.HTTPListen, fc.Sink.HTTPListen)
		if fc.Sink.MaxMessageBytes != nil {
			cfg.Sink.MaxMessageBytes = *fc.Sink.MaxMessageBytes
		}
		setInt(&cfg.Sink.MaxRecipients, fc.Sink.MaxRecipients)
		setInt(&cfg.Sink.Retention, fc.Sink.Retention)
		setString(&cfg.Sink.Dir, fc.Sink.Dir)
	}
	if fc.Assets != nil {
		setString(&cfg.Assets.TemplatesDir, fc.Assets.TemplatesDir)
		setString(&cfg.Assets.ConfigPath, fc.Assets.ConfigPath)
		setString(&cfg.Assets.InputCSS, fc.Assets.InputCSS)
		setString(&cfg.Assets.OutputCSS, fc.Assets.OutputCSS)
		setString(&cfg.Assets.TailwindBin, fc.Assets.TailwindBin)
		setDuration(&cfg.Assets.BuildTimeout, fc.Assets.BuildTimeout)
	}
}

func (l *Loader) mergeEnvConfig(cfg *Config) {
	cfg.Listen = l.envString("MICROBLOG_LISTEN", cfg.Listen)
	cfg.BaseURL = l.envString("MICROBLOG_BASE_URL", cfg.BaseURL)
	cfg.DataDir = l.envString("MICROBLOG_DATA_DIR", cfg.DataDir)
	if raw := l.envStringAlias("MICROBLOG_DATABASE_URL", "DATABASE_URL", ""); raw != "" {
		if path, err := ParseDatabaseURL(raw); err == nil {
			cfg.DatabasePath = path
		} else {
			logger := log.WithComponent("config")
			logger.Warn().
				Err(err).
				Msg("invalid database URL, keeping previous value")
		}
	}
	cfg.SecretKey = l.envStringAlias("MICROBLOG_SECRET_KEY", "SECRET_KEY", cfg.SecretKey)
	cfg.PostsPerPage = l.envIntAlias("MICROBLOG_POSTS_PER_PAGE", "POSTS_PER_PAGE", cfg.PostsPerPage)
	cfg.SessionTTL = l.envDuration("MICROBLOG_SESSION_TTL", cfg.SessionTTL)
	cfg.RememberTTL = l.envDuration("MICROBLOG_REMEMBER_TTL", cfg.RememberTTL)
	cfg.AutoMigrate = l.envBool("MICROBLOG_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = l.envStringAlias("MICROBLOG_LOG_LEVEL", "LOG_LEVEL", cfg.LogLevel)
	cfg.RedisAddr = l.envString("MICROBLOG_REDIS_ADDR", cfg.RedisAddr)
	cfg.TrustedProxies = l.envList("MICROBLOG_TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.AllowedOrigins = l.envList("MICROBLOG_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.Mail.Server = l.envStringAlias("MICROBLOG_MAIL_SERVER", "MAIL_SERVER", cfg.Mail.Server)
	cfg.Mail.Port = l.envIntAlias("MICROBLOG_MAIL_PORT", "MAIL_PORT", cfg.Mail.Port)
	cfg.Mail.UseTLS = l.envBoolAlias("MICROBLOG_MAIL_USE_TLS", "MAIL_USE_TLS", cfg.Mail.UseTLS)
	cfg.Mail.Username = l.envStringAlias("MICROBLOG_MAIL_USERNAME", "MAIL_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = l.envStringAlias("MICROBLOG_MAIL_PASSWORD", "MAIL_PASSWORD", cfg.Mail.Password)
	cfg.Mail.Admins = l.envListAlias("MICROBLOG_ADMINS", "ADMINS", cfg.Mail.Admins)
	cfg.Mail.QueueSize = l.envInt("MICROBLOG_MAIL_QUEUE_SIZE", cfg.Mail.QueueSize)
	cfg.Mail.SendTimeout = l.envDuration("MICROBLOG_MAIL_SEND_TIMEOUT", cfg.Mail.SendTimeout)
	cfg.Mail.RatePerSecond = l.envFloat("MICROBLOG_MAIL_RATE_PER_SECOND", cfg.Mail.RatePerSecond)

	cfg.Metrics.Enabled = l.envBool("MICROBLOG_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Listen = l.envString("MICROBLOG_METRICS_LISTEN", cfg.Metrics.Listen)

	cfg.RateLimit.Enabled = l.envBool("MICROBLOG_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.LoginPerMinute = l.envInt("MICROBLOG_LOGIN_RATE_PER_MINUTE", cfg.RateLimit.LoginPerMinute)
	cfg.RateLimit.GlobalRPS = l.envInt("MICROBLOG_RATE_LIMIT_RPS", cfg.RateLimit.GlobalRPS)
	cfg.RateLimit.GlobalBurst = l.envInt("MICROBLOG_RATE_LIMIT_BURST", cfg.RateLimit.GlobalBurst)

	cfg.Tracing.Enabled = l.envBool("MICROBLOG_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("MICROBLOG_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("MICROBLOG_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = l.envFloat("MICROBLOG_TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Sink.Listen = l.envString("MICROBLOG_SINK_LISTEN", cfg.Sink.Listen)
	cfg.Sink.HTTPListen = l.envString("MICROBLOG_SINK_HTTP_LISTEN", cfg.Sink.HTTPListen)
	if v := l.envInt("MICROBLOG_SINK_MAX_MESSAGE_BYTES", int(cfg.Sink.MaxMessageBytes)); v > 0 {
		cfg.Sink.MaxMessageBytes = int64(v)
	}
	cfg.Sink.MaxRecipients = l.envInt("MICROBLOG_SINK_MAX_RECIPIENTS", cfg.Sink.MaxRecipients)
	cfg.Sink.Retention = l.envInt("MICROBLOG_SINK_RETENTION", cfg.Sink.Retention)
	cfg.Sink.Dir = l.envString("MICROBLOG_SINK_DIR", cfg.Sink.Dir)

	cfg.Assets.TemplatesDir = l.envString("MICROBLOG_TEMPLATES_DIR", cfg.Assets.TemplatesDir)
	cfg.Assets.ConfigPath = l.envString("MICROBLOG_TAILWIND_CONFIG", cfg.Assets.ConfigPath)
	cfg.Assets.InputCSS = l.envString("MICROBLOG_CSS_INPUT", cfg.Assets.InputCSS)
	cfg.Assets.OutputCSS = l.envString("MICROBLOG_CSS_OUTPUT", cfg.Assets.OutputCSS)
	cfg.Assets.TailwindBin = l.envString("MICROBLOG_TAILWIND_BIN", cfg.Assets.TailwindBin)
	cfg.Assets.BuildTimeout = l.envDuration("MICROBLOG_ASSETS_BUILD_TIMEOUT", cfg.Assets.BuildTimeout)
}

// ValidateEnvUsage warns about MICROBLOG_* keys the loader never consumed
// (dead flags or typos). Call after Load.
func (l *Loader) ValidateEnvUsage() {
	unknown := make([]string, 0)
	for _, pair := range os.Environ() {
		key := strings.SplitN(pair, "=", 2)[0]
		if !strings.HasPrefix(key, "MICROBLOG_") {
			continue
		}
		if _, consumed := l.ConsumedEnvKeys[key]; consumed {
			continue
		}
		unknown = append(unknown, key)
	}
	if len(unknown) == 0 {
		return
	}
	sort.Strings(unknown)
	logger := log.WithComponent("config")
	for _, key := range unknown {
		logger.Warn().
			Str("key", key).
			Msg("unknown MICROBLOG env key detected (dead flag or typo)")
	}
}
