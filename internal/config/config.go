// Package config provides Viper-based configuration loading for the textcamp server.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/textcamp/internal/game/dice"
)

// Persistence modes.
const (
	ModeStandalone = "standalone"
	ModePostgres   = "postgres"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode selects persistence: "standalone" keeps everything in memory,
	// "postgres" uses the database section.
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PublicURL prefixes magic links sent to players.
	PublicURL string `mapstructure:"public_url"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// TelnetConfig holds Telnet acceptor settings.
type TelnetConfig struct {
	// Enabled turns the Telnet listener on.
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// ConnectionConfig holds per-connection timers.
type ConnectionConfig struct {
	// HeartbeatInterval is how often an idle client is pinged.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// ClientTimeout closes a connection with no inbound activity for this long.
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
	// TimeUpdateInterval is how often the world clock is pushed.
	TimeUpdateInterval time.Duration `mapstructure:"time_update_interval"`
	// MailboxSize bounds the undelivered frames per connection.
	MailboxSize int `mapstructure:"mailbox_size"`
}

// WorldConfig holds simulation settings.
type WorldConfig struct {
	// ContentDir holds the YAML templates loaded at boot.
	ContentDir    string        `mapstructure:"content_dir"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	MeleeInterval time.Duration `mapstructure:"melee_interval"`
	// StartTick positions the clock of a fresh world. Zero keeps the default.
	StartTick    uint64 `mapstructure:"start_tick"`
	RegenPerTick int    `mapstructure:"regen_per_tick"`
	// Damage is a fixed amount ("1") or a dice expression ("1d4").
	Damage         string `mapstructure:"damage"`
	CommitAttempts int    `mapstructure:"commit_attempts"`
}

// AuthConfig holds magic-link settings.
type AuthConfig struct {
	OTPTTL time.Duration `mapstructure:"otp_ttl"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Telnet     TelnetConfig     `mapstructure:"telnet"`
	Connection ConnectionConfig `mapstructure:"connection"`
	World      WorldConfig      `mapstructure:"world"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Server.Mode == ModePostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Telnet.Enabled {
		if err := validateTelnet(c.Telnet); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateConnection(c.Connection); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWorld(c.World); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Auth.OTPTTL <= 0 {
		errs = append(errs, "auth.otp_ttl must be positive")
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	validModes := map[string]bool{ModeStandalone: true, ModePostgres: true}
	if !validModes[s.Mode] {
		return fmt.Errorf("server.mode must be one of [standalone, postgres], got %q", s.Mode)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadTimeout < 0 {
		errs = append(errs, "http.read_timeout must not be negative")
	}
	if h.WriteTimeout < 0 {
		errs = append(errs, "http.write_timeout must not be negative")
	}
	if u, err := url.Parse(h.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("http.public_url must be an absolute URL, got %q", h.PublicURL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	var errs []string
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateConnection(c ConnectionConfig) error {
	var errs []string
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, "connection.heartbeat_interval must be positive")
	}
	if c.ClientTimeout <= c.HeartbeatInterval {
		errs = append(errs, fmt.Sprintf("connection.client_timeout (%s) must exceed connection.heartbeat_interval (%s)",
			c.ClientTimeout, c.HeartbeatInterval))
	}
	if c.TimeUpdateInterval <= 0 {
		errs = append(errs, "connection.time_update_interval must be positive")
	}
	if c.MailboxSize < 1 {
		errs = append(errs, fmt.Sprintf("connection.mailbox_size must be >= 1, got %d", c.MailboxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.ContentDir == "" {
		errs = append(errs, "world.content_dir must not be empty")
	}
	if w.TickInterval <= 0 {
		errs = append(errs, "world.tick_interval must be positive")
	}
	if w.MeleeInterval <= 0 {
		errs = append(errs, "world.melee_interval must be positive")
	}
	if w.RegenPerTick < 0 {
		errs = append(errs, fmt.Sprintf("world.regen_per_tick must be >= 0, got %d", w.RegenPerTick))
	}
	if w.CommitAttempts < 1 {
		errs = append(errs, fmt.Sprintf("world.commit_attempts must be >= 1, got %d", w.CommitAttempts))
	}
	if err := validateDamage(w.Damage); err != nil {
		errs = append(errs, "world.damage: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateDamage accepts "", an integer >= 0, or a dice expression,
// optionally prefixed by "skill:".
func validateDamage(policy string) error {
	policy = strings.TrimPrefix(strings.TrimSpace(policy), "skill:")
	if policy == "" {
		return nil
	}
	if n, err := strconv.Atoi(policy); err == nil {
		if n < 0 {
			return fmt.Errorf("must not be negative, got %d", n)
		}
		return nil
	}
	expr, err := dice.Parse(policy)
	if err != nil {
		return err
	}
	if expr.Min() < 0 {
		return fmt.Errorf("%q can roll below zero", policy)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with TEXTCAMP_ prefix
	v.SetEnvPrefix("TEXTCAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", ModeStandalone)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "textcamp")
	v.SetDefault("database.password", "textcamp")
	v.SetDefault("database.name", "textcamp")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.public_url", "http://localhost:8080")

	v.SetDefault("telnet.enabled", false)
	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "5m")
	v.SetDefault("telnet.write_timeout", "30s")

	v.SetDefault("connection.heartbeat_interval", "30s")
	v.SetDefault("connection.client_timeout", "60s")
	v.SetDefault("connection.time_update_interval", "10s")
	v.SetDefault("connection.mailbox_size", 64)

	v.SetDefault("world.content_dir", "content")
	v.SetDefault("world.tick_interval", "5s")
	v.SetDefault("world.melee_interval", "1s")
	v.SetDefault("world.start_tick", 0)
	v.SetDefault("world.regen_per_tick", 1)
	v.SetDefault("world.damage", "1")
	v.SetDefault("world.commit_attempts", 5)

	v.SetDefault("auth.otp_ttl", "15m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
