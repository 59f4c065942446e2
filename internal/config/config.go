// Package config loads the service configuration from a TOML file, a .env
// file and the process environment, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Version is the configuration file format this build writes and expects.
const Version = "1.0"

// supportedFormats is the range of format_version values accepted on load.
const supportedFormats = ">= 1.0, < 2.0"

const (
	DriverPostgres = "postgresql"
	DriverSQLite   = "sqlite"

	IdentityModeGoTrue = "gotrue"
	IdentityModeJWT    = "jwt"

	RoomPerSession = "session"
	RoomPerAgent   = "agent"
)

type ServerConfig struct {
	HostName           string   `toml:"hostname" env:"VOICEDESK_HOSTNAME"`
	Port               string   `toml:"port" env:"PORT"`
	HandleCORS         bool     `toml:"handle_cors" env:"VOICEDESK_HANDLE_CORS"`
	AllowedOrigins     []string `toml:"allowed_origins" env:"VOICEDESK_ALLOWED_ORIGINS" envSeparator:","`
	MaxRequestBodySize int64    `toml:"max_request_body_size" env:"VOICEDESK_MAX_REQUEST_BODY_SIZE"`
	RequestTimeout     string   `toml:"request_timeout" env:"VOICEDESK_REQUEST_TIMEOUT"`
}

type DBConfig struct {
	Driver           string `toml:"driver" env:"VOICEDESK_DB_DRIVER"`
	DSN              string `toml:"dsn" env:"DATABASE_URL"`
	Host             string `toml:"host" env:"VOICEDESK_DB_HOST"`
	Port             int    `toml:"port" env:"VOICEDESK_DB_PORT"`
	DBName           string `toml:"dbname" env:"VOICEDESK_DB_NAME"`
	User             string `toml:"user" env:"VOICEDESK_DB_USER"`
	Password         string `toml:"password" env:"VOICEDESK_DB_PASSWORD"`
	SSLMode          string `toml:"sslmode" env:"VOICEDESK_DB_SSLMODE"`
	Path             string `toml:"path" env:"VOICEDESK_SQLITE_PATH"`
	StatementTimeout string `toml:"statement_timeout" env:"VOICEDESK_DB_STATEMENT_TIMEOUT"`
}

// IdentityConfig selects how bearer credentials are resolved to users.
// In gotrue mode every request is checked against the provider's user
// endpoint; in jwt mode tokens are verified locally with JWTSecret.
type IdentityConfig struct {
	Mode      string `toml:"mode" env:"VOICEDESK_IDENTITY_MODE"`
	URL       string `toml:"url" env:"SUPABASE_URL"`
	AnonKey   string `toml:"anon_key" env:"SUPABASE_ANON_KEY"`
	JWTSecret string `toml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	Audience  string `toml:"audience" env:"VOICEDESK_IDENTITY_AUDIENCE"`
}

// LiveKitConfig holds the real-time media server settings. APIKey and
// APISecret may be empty at load time; requests that need them fail until
// they are provided.
type LiveKitConfig struct {
	URL          string `toml:"url" env:"LIVEKIT_URL"`
	APIKey       string `toml:"api_key" env:"LIVEKIT_API_KEY"`
	APISecret    string `toml:"api_secret" env:"LIVEKIT_API_SECRET"`
	TokenTTL     string `toml:"token_ttl" env:"LIVEKIT_TOKEN_TTL"`
	RoomStrategy string `toml:"room_strategy" env:"VOICEDESK_ROOM_STRATEGY"`
}

func (l *LiveKitConfig) GetTokenTTL() time.Duration {
	return mustDuration(l.TokenTTL)
}

type SweeperConfig struct {
	Enabled       bool   `toml:"enabled" env:"VOICEDESK_SWEEPER_ENABLED"`
	Interval      string `toml:"interval" env:"VOICEDESK_SWEEPER_INTERVAL"`
	MaxSessionAge string `toml:"max_session_age" env:"VOICEDESK_SWEEPER_MAX_SESSION_AGE"`
}

func (s *SweeperConfig) GetInterval() time.Duration {
	return mustDuration(s.Interval)
}

func (s *SweeperConfig) GetMaxSessionAge() time.Duration {
	return mustDuration(s.MaxSessionAge)
}

type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Pretty bool   `toml:"pretty" env:"VOICEDESK_LOG_PRETTY"`
}

// ConfigParam is the full service configuration.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	Server   ServerConfig   `toml:"server"`
	DB       DBConfig       `toml:"db"`
	Identity IdentityConfig `toml:"identity"`
	LiveKit  LiveKitConfig  `toml:"livekit"`
	Sweeper  SweeperConfig  `toml:"sweeper"`
	Log      LogConfig      `toml:"log"`
}

var cfg *ConfigParam

// Config returns the loaded configuration, or nil before LoadConfig.
func Config() *ConfigParam {
	return cfg
}

// SetConfig installs c as the current configuration. Used by tests and by
// commands that build a configuration programmatically.
func SetConfig(c *ConfigParam) {
	cfg = c
}

func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return mustDuration(s.RequestTimeout)
}

// DSN returns the Postgres connection string. An explicit dsn wins over the
// individual connection fields.
func (c *ConfigParam) DSN() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// Default returns a configuration with every optional value filled in.
func Default() *ConfigParam {
	c := &ConfigParam{FormatVersion: Version}
	setDefaults(c)
	return c
}

func setDefaults(c *ConfigParam) {
	if c.FormatVersion == "" {
		c.FormatVersion = Version
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxRequestBodySize <= 0 {
		c.Server.MaxRequestBodySize = 64 << 10
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "15s"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.DB.Driver == "" {
		if c.DB.DSN != "" || c.DB.Host != "" {
			c.DB.Driver = DriverPostgres
		} else {
			c.DB.Driver = DriverSQLite
		}
	}
	if c.DB.Driver == DriverPostgres {
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
		if c.DB.SSLMode == "" {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.Driver == DriverSQLite && c.DB.Path == "" {
		c.DB.Path = "voicedesk.db"
	}
	if c.DB.StatementTimeout == "" {
		c.DB.StatementTimeout = "10s"
	}
	if c.Identity.Mode == "" {
		if c.Identity.JWTSecret != "" && c.Identity.AnonKey == "" {
			c.Identity.Mode = IdentityModeJWT
		} else {
			c.Identity.Mode = IdentityModeGoTrue
		}
	}
	if c.Identity.Mode == IdentityModeJWT && c.Identity.Audience == "" {
		c.Identity.Audience = "authenticated"
	}
	if c.LiveKit.TokenTTL == "" {
		c.LiveKit.TokenTTL = "6h"
	}
	if c.LiveKit.RoomStrategy == "" {
		c.LiveKit.RoomStrategy = RoomPerSession
	}
	if c.Sweeper.Interval == "" {
		c.Sweeper.Interval = "15m"
	}
	if c.Sweeper.MaxSessionAge == "" {
		c.Sweeper.MaxSessionAge = "12h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ParseDuration accepts "<n>y", "<n>d", "<n>h" and "<n>m" as well as any
// string time.ParseDuration understands.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	if value, err := strconv.Atoi(valueStr); err == nil {
		switch unit {
		case "y":
			return time.Duration(value) * 365 * 24 * time.Hour, nil
		case "d":
			return time.Duration(value) * 24 * time.Hour, nil
		case "h":
			return time.Duration(value) * time.Hour, nil
		case "m":
			return time.Duration(value) * time.Minute, nil
		}
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %v", input, err)
	}
	return d, nil
}

func mustDuration(s string) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("unvalidated duration: %v", err))
	}
	return d
}

// LoadDotEnv loads environment variables from the given files (".env" when
// none are given). Missing files are ignored; variables already present in
// the environment are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("error loading env file: %v", err)
	}
	return nil
}

// LoadConfig reads filename (optional), overlays the environment, applies
// defaults, validates and installs the result as the current configuration.
func LoadConfig(filename string) error {
	c := &ConfigParam{}
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), c); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("error parsing environment: %v", err)
	}
	setDefaults(c)
	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}
	cfg = c
	return nil
}

// ValidateConfig checks c for missing or malformed values.
func ValidateConfig(c *ConfigParam) error {
	for _, validate := range []func(*ConfigParam) error{
		validateFormatVersion,
		validateServerConfig,
		validateDBConfig,
		validateIdentityConfig,
		validateLiveKitConfig,
		validateSweeperConfig,
	} {
		if err := validate(c); err != nil {
			return err
		}
	}
	return nil
}

func validateFormatVersion(c *ConfigParam) error {
	v, err := semver.NewVersion(c.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid format_version %q: %v", c.FormatVersion, err)
	}
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	return nil
}

func validateServerConfig(c *ConfigParam) error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if d, err := ParseDuration(c.Server.RequestTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid server.request_timeout: %q", c.Server.RequestTimeout)
	}
	return nil
}

func validateDBConfig(c *ConfigParam) error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DSN != "" {
			break
		}
		if c.DB.Host == "" {
			return fmt.Errorf("db.host or db.dsn is required")
		}
		if c.DB.DBName == "" {
			return fmt.Errorf("db.dbname is required")
		}
		if c.DB.User == "" {
			return fmt.Errorf("db.user is required")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported db.driver: %q", c.DB.Driver)
	}
	if _, err := ParseDuration(c.DB.StatementTimeout); err != nil {
		return fmt.Errorf("invalid db.statement_timeout: %v", err)
	}
	return nil
}

func validateIdentityConfig(c *ConfigParam) error {
	switch c.Identity.Mode {
	case IdentityModeGoTrue:
		if c.Identity.URL == "" {
			return fmt.Errorf("identity.url is required in gotrue mode")
		}
		if c.Identity.AnonKey == "" {
			return fmt.Errorf("identity.anon_key is required in gotrue mode")
		}
	case IdentityModeJWT:
		if c.Identity.JWTSecret == "" {
			return fmt.Errorf("identity.jwt_secret is required in jwt mode")
		}
	default:
		return fmt.Errorf("unsupported identity.mode: %q", c.Identity.Mode)
	}
	return nil
}

func validateLiveKitConfig(c *ConfigParam) error {
	if d, err := ParseDuration(c.LiveKit.TokenTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid livekit.token_ttl: %q", c.LiveKit.TokenTTL)
	}
	switch c.LiveKit.RoomStrategy {
	case RoomPerSession, RoomPerAgent:
	default:
		return fmt.Errorf("unsupported livekit.room_strategy: %q", c.LiveKit.RoomStrategy)
	}
	return nil
}

func validateSweeperConfig(c *ConfigParam) error {
	if d, err := ParseDuration(c.Sweeper.Interval); err != nil || d <= 0 {
		return fmt.Errorf("invalid sweeper.interval: %q", c.Sweeper.Interval)
	}
	if d, err := ParseDuration(c.Sweeper.MaxSessionAge); err != nil || d <= 0 {
		return fmt.Errorf("invalid sweeper.max_session_age: %q", c.Sweeper.MaxSessionAge)
	}
	return nil
}
