// SPDX-License-Identifier: MIT

package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	Listen string
	// BaseURL is the externally reachable root of the application, used
	// when composing absolute links for outbound mail.
	BaseURL      string
	DataDir      string
	DatabasePath string
	SecretKey    string
	PostsPerPage int
	SessionTTL   time.Duration
	RememberTTL  time.Duration
	AutoMigrate  bool
	LogLevel     string
	RedisAddr    string
	// TrustedProxies lists CIDRs whose X-Forwarded-For headers are honored
	// when resolving client IPs for logging and rate limiting.
	TrustedProxies []string
	// AllowedOrigins lists origins accepted by the cross-site request
	// check in addition to same-origin requests.
	AllowedOrigins []string

	Mail      MailConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Sink      SinkConfig
	Assets    AssetsConfig

	Version string
}

// MailConfig carries the outbound SMTP settings. An empty Server disables
// mail sending; password-reset requests then log the rendered message
// instead of dispatching it.
type MailConfig struct {
	Server   string
	Port     int
	UseTLS   bool
	Username string
	Password string
	// Admins holds operator addresses. The first entry is used as the
	// sender of application mail.
	Admins []string
	// QueueSize bounds the async outbox; enqueueing past it drops the mail.
	QueueSize int
	// SendTimeout bounds a single SMTP dialogue.
	SendTimeout time.Duration
	// RatePerSecond throttles the outbox worker.
	RatePerSecond float64
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool
	Listen  string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	Enabled bool
	// LoginPerMinute caps POSTs to the login and password-reset forms per
	// client IP.
	LoginPerMinute int
	// GlobalRPS caps overall requests per second per client IP.
	GlobalRPS   int
	GlobalBurst int
}

// TracingConfig controls the OpenTelemetry trace provider.
type TracingConfig struct {
	Enabled    bool
	Exporter   string // "grpc", "http" or "noop"
	Endpoint   string
	SampleRate float64
}

// SinkConfig configures the local debugging mail sink.
type SinkConfig struct {
	Listen          string
	HTTPListen      string
	MaxMessageBytes int64
	MaxRecipients   int
	// Retention bounds the number of stored messages; oldest are evicted.
	Retention int
	// Dir selects the badger-backed store; empty keeps messages in memory.
	Dir string
}

// AssetsConfig configures the CSS build toolchain boundary.
type AssetsConfig struct {
	TemplatesDir string
	ConfigPath   string
	InputCSS     string
	OutputCSS    string
	TailwindBin  string
	// BuildTimeout bounds one compiler invocation.
	BuildTimeout time.Duration
}

// FileConfig mirrors Config for strict YAML decoding. Pointer fields
// distinguish "absent" from zero values when merging.
type FileConfig struct {
	Listen         *string  `yaml:"listen"`
	BaseURL        *string  `yaml:"base_url"`
	DataDir        *string  `yaml:"data_dir"`
	DatabasePath   *string  `yaml:"database_path"`
	SecretKey      *string  `yaml:"secret_key"`
	PostsPerPage   *int     `yaml:"posts_per_page"`
	SessionTTL     *string  `yaml:"session_ttl"`
	RememberTTL    *string  `yaml:"remember_ttl"`
	AutoMigrate    *bool    `yaml:"auto_migrate"`
	LogLevel       *string  `yaml:"log_level"`
	RedisAddr      *string  `yaml:"redis_addr"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Mail *struct {
		Server        *string  `yaml:"server"`
		Port          *int     `yaml:"port"`
		UseTLS        *bool    `yaml:"use_tls"`
		Username      *string  `yaml:"username"`
		Password      *string  `yaml:"password"`
		Admins        []string `yaml:"admins"`
		QueueSize     *int     `yaml:"queue_size"`
		SendTimeout   *string  `yaml:"send_timeout"`
		RatePerSecond *float64 `yaml:"rate_per_second"`
	} `yaml:"mail"`

	Metrics *struct {
		Enabled *bool   `yaml:"enabled"`
		Listen  *string `yaml:"listen"`
	} `yaml:"metrics"`

	RateLimit *struct {
		Enabled        *bool `yaml:"enabled"`
		LoginPerMinute *int  `yaml:"login_per_minute"`
		GlobalRPS      *int  `yaml:"global_rps"`
		GlobalBurst    *int  `yaml:"global_burst"`
	} `yaml:"rate_limit"`

	Tracing *struct {
		Enabled    *bool    `yaml:"enabled"`
		Exporter   *string  `yaml:"exporter"`
		Endpoint   *string  `yaml:"endpoint"`
		SampleRate *float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Sink *struct {
		Listen          *string `yaml:"listen"`
		HTTPListen      *string `yaml:"http_listen"`
		MaxMessageBytes *int64  `yaml:"max_message_bytes"`
		MaxRecipients   *int    `yaml:"max_recipients"`
		Retention       *int    `yaml:"retention"`
		Dir             *string `yaml:"dir"`
	} `yaml:"sink"`

	Assets *struct {
		TemplatesDir *string `yaml:"templates_dir"`
		ConfigPath   *string `yaml:"config_path"`
		InputCSS     *string `yaml:"input_css"`
		OutputCSS    *string `yaml:"output_css"`
		TailwindBin  *string `yaml:"tailwind_bin"`
		BuildTimeout *string `yaml:"build_timeout"`
	} `yaml:"assets"`
}
