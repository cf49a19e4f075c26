package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Togather-Foundation/registration/internal/validation"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	CORS        CORSConfig        `yaml:"cors"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Email       EmailConfig       `yaml:"email"`
	Roster      RosterConfig      `yaml:"roster"`
	Relay       RelayConfig       `yaml:"relay"`
	Admin       AdminConfig       `yaml:"admin"`
	Event       EventConfig       `yaml:"event"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Environment string            `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig is optional. Without a URL the server runs on the legacy
// roster file alone and the admin registration endpoints are unavailable.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowed_origins"`
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
}

type RateLimitConfig struct {
	PublicPerMinute int      `yaml:"public_per_minute"`
	AdminPerMinute  int      `yaml:"admin_per_minute"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
}

// EmailConfig holds the Resend credentials used by the notification relay.
type EmailConfig struct {
	ResendAPIKey   string `yaml:"resend_api_key"`
	From           string `yaml:"from"`
	OrganizerEmail string `yaml:"organizer_email"`
	TestMode       bool   `yaml:"test_mode"`
}

// RosterConfig points at the legacy tab-separated roster kept in a GitHub
// repository, plus optional public URLs used for read-only fallbacks.
type RosterConfig struct {
	GitHubToken   string `yaml:"github_token"`
	GitHubOwner   string `yaml:"github_owner"`
	GitHubRepo    string `yaml:"github_repo"`
	GitHubBranch  string `yaml:"github_branch"`
	GitHubAPIURL  string `yaml:"github_api_url"`
	Path          string `yaml:"path"`
	PublicURL     string `yaml:"public_url"`
	RankingTSVURL string `yaml:"ranking_tsv_url"`
}

// RelayConfig routes intake calls to remote relays instead of the in-process
// email and roster services.
type RelayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	Password   string        `yaml:"password"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// EventConfig carries the display strings rendered into notification emails.
type EventConfig struct {
	Name     string `yaml:"name"`
	Date     string `yaml:"date"`
	Place    string `yaml:"place"`
	Distance string `yaml:"distance"`
	City     string `yaml:"city"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv(Defaults())
}

// LoadFile layers a YAML file under the environment: values from the file
// replace the defaults and environment variables still take precedence.
func LoadFile(path string) (Config, error) {
	_ = godotenv.Load()
	base, err := readYAML(path, Defaults())
	if err != nil {
		return Config{}, err
	}
	return fromEnv(base)
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MaxIdle:        2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 60,
			AdminPerMinute:  0,
		},
		Email: EmailConfig{
			From:           "Corrida para o Everest <onboarding@resend.dev>",
			OrganizerEmail: "corridaparaoeverest@gmail.com",
		},
		Roster: RosterConfig{
			GitHubBranch: "main",
			GitHubAPIURL: "https://api.github.com",
			Path:         "public/atletas.tsv",
		},
		Relay: RelayConfig{
			Timeout: 15 * time.Second,
		},
		Admin: AdminConfig{
			SessionTTL: 12 * time.Hour,
		},
		Event: EventConfig{
			Name:     "Corrida para o Everest",
			Date:     "26/12/2025 às 07:00h",
			Place:    "Parque de Exposições → Sítio Everest",
			Distance: "10 km",
			City:     "Miracema - RJ",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "registration",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

func fromEnv(cfg Config) (Config, error) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	cfg.RateLimit.AdminPerMinute = getEnvInt("RATE_LIMIT_ADMIN", cfg.RateLimit.AdminPerMinute)
	if proxies := getEnvList("TRUSTED_PROXY_CIDRS"); len(proxies) > 0 {
		cfg.RateLimit.TrustedProxies = proxies
	}

	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	cfg.Email.From = getEnv("RESEND_FROM", cfg.Email.From)
	cfg.Email.OrganizerEmail = getEnv("RESEND_ORGANIZER_EMAIL", cfg.Email.OrganizerEmail)
	cfg.Email.TestMode = getEnvBool("RESEND_TEST_MODE", cfg.Email.TestMode)

	cfg.Roster.GitHubToken = getEnv("GITHUB_TOKEN", cfg.Roster.GitHubToken)
	cfg.Roster.GitHubOwner = getEnv("GITHUB_OWNER", cfg.Roster.GitHubOwner)
	cfg.Roster.GitHubRepo = getEnv("GITHUB_REPO", cfg.Roster.GitHubRepo)
	cfg.Roster.GitHubBranch = getEnv("GITHUB_BRANCH", cfg.Roster.GitHubBranch)
	cfg.Roster.GitHubAPIURL = getEnv("GITHUB_API_URL", cfg.Roster.GitHubAPIURL)
	cfg.Roster.Path = getEnv("ROSTER_PATH", cfg.Roster.Path)
	cfg.Roster.PublicURL = getEnv("ROSTER_TSV_URL", cfg.Roster.PublicURL)
	cfg.Roster.RankingTSVURL = getEnv("RANKING_TSV_URL", cfg.Roster.RankingTSVURL)

	cfg.Relay.BaseURL = strings.TrimRight(getEnv("RELAY_BASE_URL", cfg.Relay.BaseURL), "/")
	cfg.Relay.Timeout = getEnvDuration("RELAY_TIMEOUT", cfg.Relay.Timeout)

	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.Admin.JWTSecret = getEnv("JWT_SECRET", cfg.Admin.JWTSecret)
	cfg.Admin.SessionTTL = getEnvDuration("ADMIN_SESSION_TTL", cfg.Admin.SessionTTL)

	cfg.Event.Name = getEnv("EVENT_NAME", cfg.Event.Name)
	cfg.Event.Date = getEnv("EVENT_DATE", cfg.Event.Date)
	cfg.Event.Place = getEnv("EVENT_PLACE", cfg.Event.Place)
	cfg.Event.Distance = getEnv("EVENT_DISTANCE", cfg.Event.Distance)
	cfg.Event.City = getEnv("EVENT_CITY", cfg.Event.City)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	if origins := getEnvList("CORS_ALLOWED_ORIGINS"); len(origins) > 0 {
		cfg.CORS.AllowedOrigins = origins
	}
	switch cfg.Environment {
	case "development", "test":
		cfg.CORS.AllowAllOrigins = true
	default:
		if len(cfg.CORS.AllowedOrigins) == 0 {
			return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS is required in %s", cfg.Environment)
		}
	}

	if err := validateURLs(cfg); err != nil {
		return Config{}, err
	}

	if cfg.Admin.Password != "" && cfg.Admin.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD is set")
	}
	if cfg.Admin.JWTSecret != "" && len(cfg.Admin.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return cfg, nil
}

// validateURLs rejects malformed endpoints at startup. Outbound URLs must be
// HTTPS in production.
func validateURLs(cfg Config) error {
	production := cfg.Environment == "production"
	for _, u := range []struct {
		field string
		value string
		https bool
	}{
		{"SERVER_BASE_URL", cfg.Server.BaseURL, false},
		{"RELAY_BASE_URL", cfg.Relay.BaseURL, production},
		{"GITHUB_API_URL", cfg.Roster.GitHubAPIURL, production},
		{"ROSTER_TSV_URL", cfg.Roster.PublicURL, production},
		{"RANKING_TSV_URL", cfg.Roster.RankingTSVURL, production},
	} {
		if err := validation.ValidateURL(u.value, u.field, u.https); err != nil {
			return err
		}
	}
	for _, origin := range cfg.CORS.AllowedOrigins {
		if err := validation.ValidateOrigin(origin, "CORS_ALLOWED_ORIGINS"); err != nil {
			return err
		}
	}
	return nil
}

// StoreConfigured reports whether a database is available.
func (c Config) StoreConfigured() bool {
	return c.Database.URL != ""
}

// GitHubConfigured reports whether legacy roster writes can be made.
func (c RosterConfig) GitHubConfigured() bool {
	return c.GitHubToken != "" && c.GitHubOwner != "" && c.GitHubRepo != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
