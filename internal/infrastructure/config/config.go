package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "LUTRONBOND_"

// DefaultPath is used when LUTRONBOND_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for lutronbond.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Lutron   LutronConfig   `yaml:"lutron"`
	Bond     BondConfig     `yaml:"bond"`
	Tuya     TuyaConfig     `yaml:"tuya"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`

	// ActionTemplates holds shared action tables. It is not read directly;
	// device mappings reference its entries through YAML anchors.
	ActionTemplates map[string]lutron.ActionTable `yaml:"action_templates"`

	// ShutdownGracePeriod bounds how long in-flight handlers may run after
	// the sessions are closed. Default: 5s.
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
}

// LutronConfig contains the lighting bridge sessions and their device mappings.
type LutronConfig struct {
	// Bridges lists the bridges to hold sessions with. The first entry is
	// the primary bridge; the second is selected by target bridge index 2.
	Bridges []BridgeConfig `yaml:"bridges"`

	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	LoginAttempts int    `yaml:"login_attempts"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`

	// ReconnectDelay is the first wait after a dropped stream; it grows
	// exponentially up to ReconnectMaxDelay.
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
}

// BridgeConfig describes one lighting bridge.
type BridgeConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Devices maps a source integration id to its outbound targets.
	Devices map[int]DeviceMapping `yaml:"devices"`
}

// DeviceMapping lists what a single source integration id drives.
// Each integration accepts either one target or a list of them.
type DeviceMapping struct {
	Name   string             `yaml:"name"`
	Lutron List[LutronTarget] `yaml:"lutron"`
	Bond   List[BondTarget]   `yaml:"bond"`
	Tuya   List[TuyaTarget]   `yaml:"tuya"`
	MQTT   List[MQTTTarget]   `yaml:"mqtt"`
}

// Targets returns the total number of targets across all integrations.
func (m DeviceMapping) Targets() int {
	return len(m.Lutron) + len(m.Bond) + len(m.Tuya) + len(m.MQTT)
}

// LutronTarget sends commands back onto a lighting bridge.
type LutronTarget struct {
	IntegrationID int                `yaml:"integration_id"`
	Bridge        int                `yaml:"bridge"` // 0 or 1 = primary, 2 = second bridge
	Actions       lutron.ActionTable `yaml:"actions"`
}

// BondTarget drives one Bond device.
type BondTarget struct {
	DeviceID string             `yaml:"device_id"`
	Name     string             `yaml:"name"`
	Actions  lutron.ActionTable `yaml:"actions"`
}

// TuyaTarget drives one Tuya outlet over the local protocol.
type TuyaTarget struct {
	DeviceID string             `yaml:"device_id"`
	Name     string             `yaml:"name"`
	Address  string             `yaml:"address"`
	Port     int                `yaml:"port"`
	LocalKey string             `yaml:"local_key"`
	Version  string             `yaml:"version"` // "3.1" or "3.3"; defaults to tuya.default_version
	Actions  lutron.ActionTable `yaml:"actions"`
}

// MQTTTarget publishes translated actions to lutronbond/command/<target>.
type MQTTTarget struct {
	Target  string             `yaml:"target"`
	Actions lutron.ActionTable `yaml:"actions"`
}

// List decodes either a single YAML value or a sequence of them.
type List[T any] []T

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *List[T]) UnmarshalYAML(value *yaml.Node) error {
	for value.Kind == yaml.AliasNode && value.Alias != nil {
		value = value.Alias
	}
	if value.Kind == yaml.SequenceNode {
		var items []T
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var item T
	if err := value.Decode(&item); err != nil {
		return err
	}
	*l = List[T]{item}
	return nil
}

// BondConfig contains Bond bridge connection settings.
type BondConfig struct {
	Address    string        `yaml:"address"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// VerifyOnStart fetches the bridge version before the sessions open.
	VerifyOnStart bool `yaml:"verify_on_start"`

	// KeepaliveInterval is how often the bridge is polled. 0 disables it.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// TuyaConfig contains settings shared by all Tuya targets.
type TuyaConfig struct {
	DefaultVersion string        `yaml:"default_version"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryLimit     int           `yaml:"retry_limit"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// MirrorEvents publishes every decoded event to lutronbond/event/...
	MirrorEvents bool `yaml:"mirror_events"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays prunes journal rows older than this. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings for the status API.
type JWTConfig struct {
	// Enabled requires a valid token on every API route except /healthz.
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
	Issuer  string `yaml:"issuer"`
}

// Path returns the configuration file path from LUTRONBOND_CONFIG, or
// DefaultPath when it is unset.
func Path() string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUTRONBOND_SECTION_KEY
// For example: LUTRONBOND_LUTRON_ADDRESS, LUTRONBOND_BOND_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Lutron: LutronConfig{
			Username:          lutron.DefaultUsername,
			Password:          lutron.DefaultPassword,
			LoginAttempts:     5,
			ConnectTimeout:    10 * time.Second,
			WriteTimeout:      5 * time.Second,
			ReconnectDelay:    5 * time.Second,
			ReconnectMaxDelay: 2 * time.Minute,
		},
		Bond: BondConfig{
			Timeout:       10 * time.Second,
			RetryCount:    3,
			RetryDelay:    500 * time.Millisecond,
			VerifyOnStart: true,
		},
		Tuya: TuyaConfig{
			DefaultVersion: "3.3",
			Timeout:        5 * time.Second,
			RetryLimit:     5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lutronbond",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			MirrorEvents: true,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:          "./data/lutronbond.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{Issuer: "lutronbond"},
		},
		ShutdownGracePeriod: 5 * time.Second,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUTRONBOND_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	// Lutron - the address overrides the primary bridge, creating it if absent
	if v := env("LUTRON_ADDRESS"); v != "" {
		if len(cfg.Lutron.Bridges) == 0 {
			cfg.Lutron.Bridges = append(cfg.Lutron.Bridges, BridgeConfig{})
		}
		cfg.Lutron.Bridges[0].Address = v
	}
	if v := env("LUTRON_USERNAME"); v != "" {
		cfg.Lutron.Username = v
	}
	if v := env("LUTRON_PASSWORD"); v != "" {
		cfg.Lutron.Password = v
	}

	// Bond
	if v := env("BOND_ADDRESS"); v != "" {
		cfg.Bond.Address = v
	}
	if v := env("BOND_TOKEN"); v != "" {
		cfg.Bond.Token = v
	}

	// MQTT
	if v := env("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := env("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := env("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := env("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Storage
	if v := env("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := env("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := env("API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := env("JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// requiredMsg formats a missing-setting error naming the overriding variable.
func requiredMsg(field, envKey string) string {
	if envKey == "" {
		return field + ": required configuration not found"
	}
	return fmt.Sprintf("%s: required configuration not found (set %s%s)", field, EnvPrefix, envKey)
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Lutron validation
	if len(c.Lutron.Bridges) == 0 {
		errs = append(errs, requiredMsg("lutron.bridges", "LUTRON_ADDRESS"))
	}
	if len(c.Lutron.Bridges) > 2 { //nolint:mnd // primary plus one secondary bridge
		errs = append(errs, "lutron.bridges supports at most 2 bridges")
	}
	if c.Lutron.LoginAttempts < 1 {
		errs = append(errs, "lutron.login_attempts must be at least 1")
	}

	usesBond := false
	addresses := make(map[string]int, len(c.Lutron.Bridges))
	for i, b := range c.Lutron.Bridges {
		prefix := fmt.Sprintf("lutron.bridges[%d]", i)
		if b.Address == "" {
			envKey := ""
			if i == 0 {
				envKey = "LUTRON_ADDRESS"
			}
			errs = append(errs, requiredMsg(prefix+".address", envKey))
		} else if first, dup := addresses[b.Address]; dup {
			errs = append(errs, fmt.Sprintf("%s.address %q duplicates lutron.bridges[%d]", prefix, b.Address, first))
		} else {
			addresses[b.Address] = i
		}
		if b.Port < 0 || b.Port > 65535 {
			errs = append(errs, prefix+".port must be between 1 and 65535, or 0 for the default")
		}

		for id, dev := range b.Devices {
			devPrefix := fmt.Sprintf("%s.devices[%d]", prefix, id)
			if dev.Targets() == 0 {
				errs = append(errs, devPrefix+" has no targets")
			}
			for j, t := range dev.Lutron {
				if t.Bridge < 0 || t.Bridge > 2 || (t.Bridge == 2 && len(c.Lutron.Bridges) < 2) {
					errs = append(errs, fmt.Sprintf("%s.lutron[%d].bridge %d does not name a configured bridge", devPrefix, j, t.Bridge))
				}
			}
			for j, t := range dev.Bond {
				usesBond = true
				if t.DeviceID == "" {
					errs = append(errs, requiredMsg(fmt.Sprintf("%s.bond[%d].device_id", devPrefix, j), ""))
				}
			}
			for j, t := range dev.Tuya {
				errs = append(errs, c.validateTuya(fmt.Sprintf("%s.tuya[%d]", devPrefix, j), t)...)
			}
			for j, t := range dev.MQTT {
				if t.Target == "" {
					errs = append(errs, requiredMsg(fmt.Sprintf("%s.mqtt[%d].target", devPrefix, j), ""))
				}
				if !c.MQTT.Enabled {
					errs = append(errs, fmt.Sprintf("%s.mqtt[%d] requires mqtt.enabled", devPrefix, j))
				}
			}
		}
	}

	// Bond validation - only needed when some device drives a Bond target
	if usesBond {
		if c.Bond.Address == "" {
			errs = append(errs, requiredMsg("bond.address", "BOND_ADDRESS"))
		}
		if c.Bond.Token == "" {
			errs = append(errs, requiredMsg("bond.token", "BOND_TOKEN"))
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// A short secret lets anyone on the network forge tokens for the API.
	const minJWTSecretLength = 32
	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, requiredMsg("security.jwt.secret", "JWT_SECRET"))
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if c.ShutdownGracePeriod < 0 {
		errs = append(errs, "shutdown_grace_period must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateTuya(prefix string, t TuyaTarget) []string {
	var errs []string
	if t.DeviceID == "" {
		errs = append(errs, requiredMsg(prefix+".device_id", ""))
	}
	if t.Address == "" {
		errs = append(errs, requiredMsg(prefix+".address", ""))
	}
	if len(t.LocalKey) != 16 { //nolint:mnd // AES-128 key length
		errs = append(errs, prefix+".local_key must be 16 characters")
	}
	switch c.TuyaVersion(t) {
	case "3.1", "3.3":
	default:
		errs = append(errs, fmt.Sprintf("%s.version %q is not supported (3.1 or 3.3)", prefix, c.TuyaVersion(t)))
	}
	return errs
}

// TuyaVersion returns the protocol version for t, falling back to
// tuya.default_version.
func (c *Config) TuyaVersion(t TuyaTarget) string {
	if t.Version != "" {
		return t.Version
	}
	return c.Tuya.DefaultVersion
}

// BridgeAddresses returns the configured bridge addresses in order.
func (c *Config) BridgeAddresses() lutron.Bridges {
	out := make(lutron.Bridges, 0, len(c.Lutron.Bridges))
	for _, b := range c.Lutron.Bridges {
		out = append(out, b.Address)
	}
	return out
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
