package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. TUTOR_RATE_LIMIT__MAX.
const EnvPrefix = "TUTOR_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Limits    LimitsConfig    `koanf:"limits"`
	Local     LocalConfig     `koanf:"local"`
	Hosted    HostedConfig    `koanf:"hosted"`
	Documents DocumentsConfig `koanf:"documents"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	CORSOrigin     string        `koanf:"cors_origin"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuthConfig struct {
	ProxyKey     string `koanf:"proxy_key"`
	ProxyKeyHash string `koanf:"proxy_key_hash"` // SHA-256 hex, see cmd/keygen
	Disabled     bool   `koanf:"disabled"`
}

type RateLimitConfig struct {
	WindowMS int `koanf:"window_ms"`
	Max      int `koanf:"max"`
}

// Window returns the configured window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}

type LimitsConfig struct {
	MaxPromptTokens int `koanf:"max_prompt_tokens"` // 0 disables the check
	// TokenCounter is "tiktoken" or "estimate" (chars/4, no tokenizer tables).
	TokenCounter string `koanf:"token_counter"`
}

type LocalConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Force        bool          `koanf:"force"` // route every request to the local provider
	BaseURL      string        `koanf:"base_url"`
	DefaultModel string        `koanf:"default_model"`
	Prefix       string        `koanf:"prefix"`
	Timeout      time.Duration `koanf:"timeout"`
}

type HostedConfig struct {
	Enabled      bool          `koanf:"enabled"`
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"` // Custom API endpoint
	DefaultModel string        `koanf:"default_model"`
	Timeout      time.Duration `koanf:"timeout"`
}

type DocumentsConfig struct {
	OutputDir      string        `koanf:"output_dir"`
	CompilerBin    string        `koanf:"compiler_bin"`
	Timeout        time.Duration `koanf:"timeout"`
	DownloadPrefix string        `koanf:"download_prefix"`
	SourceExt      string        `koanf:"source_ext"`
	Author         string        `koanf:"author"`
	Lang           string        `koanf:"lang"`
	Retention      time.Duration `koanf:"retention"` // 0 keeps artifacts forever
	SweepInterval  time.Duration `koanf:"sweep_interval"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	SampleRatio float64 `koanf:"sample_ratio"`
	// Output is "stderr", "stdout" or a file path for exported spans.
	Output string `koanf:"output"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// legacyEnv maps the environment names used by earlier deployments onto config keys.
var legacyEnv = map[string]string{
	"PORT":                 "server.port",
	"CORS_ORIGIN":          "server.cors_origin",
	"PROXY_KEY":            "auth.proxy_key",
	"RATE_LIMIT_WINDOW_MS": "rate_limit.window_ms",
	"RATE_LIMIT_MAX":       "rate_limit.max",
	"USE_OLLAMA":           "local.force",
	"OLLAMA_HOST":          "local.base_url",
	"OLLAMA_MODEL":         "local.default_model",
	"OPENAI_API_KEY":       "hosted.api_key",
	"OPENAI_BASE_URL":      "hosted.base_url",
	"PDF_OUTPUT_DIR":       "documents.output_dir",
	"TYPST_BIN":            "documents.compiler_bin",
	"LOG_LEVEL":            "log.level",
}

var defaults = map[string]any{
	"server.port":               3000,
	"server.cors_origin":        "*",
	"server.max_body_bytes":     100 * 1024,
	"server.request_timeout":    "60s",
	"rate_limit.window_ms":      60000,
	"rate_limit.max":            30,
	"limits.token_counter":      "tiktoken",
	"local.enabled":             true,
	"local.base_url":            "http://localhost:11434",
	"local.default_model":       "llama3",
	"local.prefix":              "ollama:",
	"local.timeout":             "120s",
	"hosted.enabled":            true,
	"hosted.default_model":      "gpt-3.5-turbo",
	"hosted.timeout":            "120s",
	"documents.output_dir":      "./generated-pdfs",
	"documents.compiler_bin":    "typst",
	"documents.timeout":         "30s",
	"documents.download_prefix": "/download",
	"documents.source_ext":      ".typ",
	"documents.author":          "Tutor",
	"documents.lang":            "en",
	"documents.retention":       "24h",
	"documents.sweep_interval":  "10m",
	"storage.type":              "sqlite",
	"storage.sqlite.path":       "./data/artifacts.db",
	"telemetry.sample_ratio":    1.0,
	"telemetry.output":          "stderr",
	"log.level":                 "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the optional YAML file at path, then legacy
// environment names, then TUTOR_ prefixed overrides. Missing keys fall back
// to defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Auth.ProxyKey = substituteEnvVars(cfg.Auth.ProxyKey)
	cfg.Auth.ProxyKeyHash = substituteEnvVars(cfg.Auth.ProxyKeyHash)
	cfg.Hosted.APIKey = substituteEnvVars(cfg.Hosted.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
