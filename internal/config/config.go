package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EngineNative = "native"
	EngineGoCV   = "gocv"
)

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ImageFetchTimeout  time.Duration `yaml:"image_fetch_timeout"`
	ProcessingTimeout  time.Duration `yaml:"processing_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	MaxImageBytes      int64         `yaml:"max_image_bytes"`
	MaxImagePixels     int64         `yaml:"max_image_pixels"`
	FetchInsecureTLS   bool          `yaml:"fetch_insecure_tls"`

	LogLevel string `yaml:"log_level"`
	GinMode  string `yaml:"gin_mode"`

	EdgeEngine     string `yaml:"edge_engine"`
	EdgeWorkers    int    `yaml:"edge_workers"`
	PNGCompression string `yaml:"png_compression"`

	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_allowed_origins"`
	AllowedSchemes []string `yaml:"allowed_schemes"`
	AllowedHosts   []string `yaml:"allowed_hosts"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`

	AzureAccountName string `yaml:"azure_storage_account"`
	AzureAccountKey  string `yaml:"azure_storage_key"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials were supplied.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		ProcessingTimeout:  20 * time.Second,
		MaxRequestBodySize: 1 << 20,  // 1MB of form data
		MaxImageBytes:      20 << 20, // 20MB
		MaxImagePixels:     40_000_000,
		LogLevel:           "info",
		GinMode:            "release",
		EdgeEngine:         EngineNative,
		EdgeWorkers:        0, // CPU count
		PNGCompression:     "default",
		RateLimitRPS:       0, // disabled
		RateLimitBurst:     10,
		CORSOrigins:        []string{"*"},
		AllowedSchemes:     []string{"http", "https"},
		MetricsEnabled:     true,
	}
}

// LoadFromEnv builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, a .env file in the working directory and finally the
// process environment. Later sources win.
func LoadFromEnv() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", c.ImageFetchTimeout)
	c.ProcessingTimeout = parseDurationOrDefault("PROCESSING_TIMEOUT", c.ProcessingTimeout)
	c.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", c.MaxRequestBodySize)
	c.MaxImageBytes = parseIntOrDefault("MAX_IMAGE_BYTES", c.MaxImageBytes)
	c.MaxImagePixels = parseIntOrDefault("MAX_IMAGE_PIXELS", c.MaxImagePixels)
	c.FetchInsecureTLS = parseBoolOrDefault("FETCH_INSECURE_TLS", c.FetchInsecureTLS)

	c.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.LogLevel))
	c.GinMode = getEnvOrDefault("GIN_MODE", c.GinMode)

	c.EdgeEngine = strings.ToLower(getEnvOrDefault("EDGE_ENGINE", c.EdgeEngine))
	c.EdgeWorkers = int(parseIntOrDefault("EDGE_WORKERS", int64(c.EdgeWorkers)))
	c.PNGCompression = strings.ToLower(getEnvOrDefault("PNG_COMPRESSION", c.PNGCompression))

	c.RateLimitRPS = parseFloatOrDefault("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = int(parseIntOrDefault("RATE_LIMIT_BURST", int64(c.RateLimitBurst)))
	c.CORSOrigins = parseListOrDefault("CORS_ALLOWED_ORIGINS", c.CORSOrigins)
	c.AllowedSchemes = parseListOrDefault("ALLOWED_SCHEMES", c.AllowedSchemes)
	c.AllowedHosts = parseListOrDefault("ALLOWED_HOSTS", c.AllowedHosts)
	c.MetricsEnabled = parseBoolOrDefault("METRICS_ENABLED", c.MetricsEnabled)

	c.AzureAccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", c.AzureAccountName)
	c.AzureAccountKey = getEnvOrDefault("AZURE_STORAGE_KEY", c.AzureAccountKey)
}

// Validate checks the values that cannot be silently defaulted.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0 (got %d)", c.MaxImageBytes)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.ProcessingTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, processing=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.ProcessingTimeout)
	}
	switch c.EdgeEngine {
	case EngineNative, EngineGoCV:
	default:
		return fmt.Errorf("unsupported EDGE_ENGINE: %q", c.EdgeEngine)
	}
	switch c.PNGCompression {
	case "default", "none", "speed", "best":
	default:
		return fmt.Errorf("unsupported PNG_COMPRESSION: %q", c.PNGCompression)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0 (got %g)", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0 when rate limiting is enabled")
	}
	if len(c.AllowedSchemes) == 0 {
		return fmt.Errorf("ALLOWED_SCHEMES must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseListOrDefault reads a comma separated list, dropping blanks.
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
