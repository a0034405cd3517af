// Package config loads the server configuration from YAML and the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage driver names accepted by StorageConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ServerConfig is the [server] section.
type ServerConfig struct {
	// Name is the display name shown in the login banner.
	Name string `mapstructure:"name"`
	// MaxSessions caps concurrent connections; connections beyond it are told the server is full.
	MaxSessions int `mapstructure:"max_sessions"`
	// SaveInterval is how often online character locations are persisted. 0 disables periodic saves.
	SaveInterval time.Duration `mapstructure:"save_interval"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig locates the PostgreSQL server used when the storage driver
// is postgres, and sizes its pool.
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

// DSN returns the connection URL for pgx and golang-migrate. User and
// password are escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// TelnetConfig configures the player listener and each connection on it.
type TelnetConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadTimeout is the idle limit: a client silent this long is dropped.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds each write so a stalled client cannot hold a writer.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxLineLength is the longest accepted input line in bytes.
	MaxLineLength int `mapstructure:"max_line_length"`
	// Color enables ANSI color in server output.
	Color bool `mapstructure:"color"`
}

// Addr returns the listen address.
func (t TelnetConfig) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// SessionConfig holds per-session limits.
type SessionConfig struct {
	// OutputQueueSize bounds the pending output lines per session.
	OutputQueueSize int `mapstructure:"output_queue_size"`
	// MaxLoginAttempts is the number of failed credential checks before disconnect.
	MaxLoginAttempts int `mapstructure:"max_login_attempts"`
	// FlushTimeout bounds the best-effort output flush during teardown.
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
	// LineRate is the sustained number of input lines per second allowed.
	LineRate float64 `mapstructure:"line_rate"`
	// LineBurst is the number of input lines allowed in a burst.
	LineBurst int `mapstructure:"line_burst"`
}

// WorldConfig holds world content settings.
type WorldConfig struct {
	// ZonesDir is the directory of zone YAML files.
	ZonesDir string `mapstructure:"zones_dir"`
	// StartRoom overrides the first zone's start room when non-empty.
	StartRoom string `mapstructure:"start_room"`
}

// ScriptingConfig holds Lua zone hook settings.
type ScriptingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// InstructionLimit caps Lua opcodes per VM. 0 uses the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// HealthConfig holds the gRPC health endpoint settings.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" health listen address.
func (h HealthConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn or error
	Format string `mapstructure:"format"` // json or console
}

// Config mirrors the YAML file, one field per top-level section.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telnet    TelnetConfig    `mapstructure:"telnet"`
	Session   SessionConfig   `mapstructure:"session"`
	World     WorldConfig     `mapstructure:"world"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Health    HealthConfig    `mapstructure:"health"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks every field and reports all problems at once.
//
// Postcondition: Returns nil, or an error listing each violation.
func (c Config) Validate() error {
	var v violations

	v.check(c.Server.Name != "", "server.name must not be empty")
	v.atLeast("server.max_sessions", c.Server.MaxSessions, 1)
	v.check(c.Server.SaveInterval >= 0, "server.save_interval must not be negative")

	v.oneOf("storage.driver", c.Storage.Driver, DriverPostgres, DriverSQLite)
	if c.Storage.Driver == DriverSQLite {
		v.check(c.Storage.SQLitePath != "", "storage.sqlite_path must not be empty for the sqlite driver")
	}
	if c.Storage.Driver == DriverPostgres {
		c.Database.validate(&v)
	}

	v.port("telnet.port", c.Telnet.Port)
	v.check(c.Telnet.ReadTimeout >= 0, "telnet.read_timeout must not be negative")
	v.check(c.Telnet.WriteTimeout >= 0, "telnet.write_timeout must not be negative")
	v.atLeast("telnet.max_line_length", c.Telnet.MaxLineLength, minLineLength)

	v.atLeast("session.output_queue_size", c.Session.OutputQueueSize, 1)
	v.atLeast("session.max_login_attempts", c.Session.MaxLoginAttempts, 1)
	v.check(c.Session.FlushTimeout >= 0, "session.flush_timeout must not be negative")
	v.check(c.Session.LineRate > 0, fmt.Sprintf("session.line_rate must be > 0, got %v", c.Session.LineRate))
	v.atLeast("session.line_burst", c.Session.LineBurst, 1)

	v.check(c.World.ZonesDir != "", "world.zones_dir must not be empty")
	v.check(c.Scripting.InstructionLimit >= 0, "scripting.instruction_limit must not be negative")

	if c.Health.Enabled {
		v.check(c.Health.Host != "", "health.host must not be empty")
		v.port("health.port", c.Health.Port)
	}

	v.oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error")
	v.oneOf("logging.format", c.Logging.Format, "json", "console")

	return v.err()
}

// minLineLength keeps room for the longest command keyword plus an argument.
const minLineLength = 16

func (d DatabaseConfig) validate(v *violations) {
	v.check(d.Host != "", "database.host must not be empty")
	v.port("database.port", d.Port)
	v.check(d.User != "", "database.user must not be empty")
	v.check(d.Name != "", "database.name must not be empty")
	v.oneOf("database.sslmode", d.SSLMode, "disable", "require", "verify-ca", "verify-full")
	v.atLeast("database.max_conns", int(d.MaxConns), 1)
	v.atLeast("database.min_conns", int(d.MinConns), 0)
	v.check(d.MinConns <= d.MaxConns, "database.min_conns must not exceed database.max_conns")
}

// violations accumulates validation failures in the order they are found.
type violations []string

func (v *violations) check(ok bool, msg string) {
	if !ok {
		*v = append(*v, msg)
	}
}

func (v *violations) atLeast(key string, got, floor int) {
	v.check(got >= floor, fmt.Sprintf("%s must be >= %d, got %d", key, floor, got))
}

func (v *violations) port(key string, got int) {
	v.check(got >= 1 && got <= 65535, fmt.Sprintf("%s must be 1-65535, got %d", key, got))
}

func (v *violations) oneOf(key, got string, allowed ...string) {
	v.check(slices.Contains(allowed, got),
		fmt.Sprintf("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), got))
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(v, "; "))
}

// EnvPrefix prefixes environment overrides: telnet.port is read from
// VOWMUD_TELNET_PORT.
const EnvPrefix = "VOWMUD"

// Load layers the YAML file at path over the defaults, then environment
// variables over both, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return LoadFromViper(v)
}

// LoadFromViper decodes and validates whatever v already holds.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaults holds the value of every key a config file may omit.
var defaults = map[string]any{
	"server.name":          "Vow MUD",
	"server.max_sessions":  256,
	"server.save_interval": "5m",

	"storage.driver":      DriverSQLite,
	"storage.sqlite_path": "data/vowmud.db",

	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "vowmud",
	"database.password":          "vowmud",
	"database.name":              "vowmud",
	"database.sslmode":           "disable",
	"database.max_conns":         10,
	"database.min_conns":         2,
	"database.max_conn_lifetime": "1h",

	"telnet.host":            "0.0.0.0",
	"telnet.port":            4000,
	"telnet.read_timeout":    "30m",
	"telnet.write_timeout":   "10s",
	"telnet.max_line_length": 512,
	"telnet.color":           true,

	"session.output_queue_size":  256,
	"session.max_login_attempts": 3,
	"session.flush_timeout":      "2s",
	"session.line_rate":          10.0,
	"session.line_burst":         20,

	"world.zones_dir":  "content/zones",
	"world.start_room": "",

	"scripting.enabled":           true,
	"scripting.instruction_limit": 0,

	"health.enabled": false,
	"health.host":    "127.0.0.1",
	"health.port":    4080,

	"logging.level":  "info",
	"logging.format": "json",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}
