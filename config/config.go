package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	Solana       SolanaConfig       `toml:"solana"`
	X            XConfig            `toml:"x"`
	Verification VerificationConfig `toml:"verification"`
	Missions     MissionsConfig     `toml:"missions"`
	Sweep        SweepConfig        `toml:"sweep"`
	Archive      ArchiveConfig      `toml:"archive"`
	Log          LogConfig          `toml:"log"`
}

type ServerConfig struct {
	Port           string `toml:"port"`
	AllowedOrigins string `toml:"allowed_origins"`
	GatewayToken   string `toml:"gateway_token"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // postgres | sqlite
	DSN    string `toml:"dsn"`
}

type SolanaConfig struct {
	RPCURL     string `toml:"rpc_url"`
	MaxRetries int    `toml:"max_retries"`
}

type XConfig struct {
	APIBaseURL    string  `toml:"api_base_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
	MaxRetries    int     `toml:"max_retries"`
}

type VerificationConfig struct {
	Timeout string `toml:"timeout"`
}

type MissionsConfig struct {
	Timezone string `toml:"timezone"`
}

type SweepConfig struct {
	Interval   string `toml:"interval"`
	StaleAfter string `toml:"stale_after"`
}

// ArchiveConfig points at an S3-compatible bucket (Cloudflare R2). Empty bucket disables archival.
type ArchiveConfig struct {
	AccountID       string `toml:"account_id"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Bucket          string `toml:"bucket"`
	QueueSize       int    `toml:"queue_size"`
}

type LogConfig struct {
	Development bool   `toml:"development"`
	Level       string `toml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5200",
			AllowedOrigins: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/vibeproof.db",
		},
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			MaxRetries: 2,
		},
		X: XConfig{
			APIBaseURL:    "https://api.x.com",
			RatePerSecond: 1,
			Burst:         5,
			MaxRetries:    2,
		},
		Verification: VerificationConfig{
			Timeout: "8s",
		},
		Missions: MissionsConfig{
			Timezone: "UTC",
		},
		Sweep: SweepConfig{
			Interval:   "5m",
			StaleAfter: "15m",
		},
		Archive: ArchiveConfig{
			QueueSize: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads defaults, then the TOML file at path (a missing file is fine),
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.Server.GatewayToken, "GATEWAY_TOKEN")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
		// A bare DATABASE_URL means postgres, matching production deploys.
		if os.Getenv("DATABASE_DRIVER") == "" && strings.HasPrefix(dsn, "postgres") {
			c.Database.Driver = "postgres"
		}
	}
	setString(&c.Solana.RPCURL, "SOLANA_RPC_URL")
	setString(&c.X.APIBaseURL, "X_API_BASE_URL")
	setString(&c.Verification.Timeout, "VERIFICATION_TIMEOUT")
	setString(&c.Missions.Timezone, "MISSIONS_TIMEZONE")
	setString(&c.Sweep.Interval, "SWEEP_INTERVAL")
	setString(&c.Sweep.StaleAfter, "SWEEP_STALE_AFTER")
	setString(&c.Archive.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&c.Archive.Endpoint, "R2_ENDPOINT")
	setString(&c.Archive.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.Archive.AccessKeySecret, "R2_ACCESS_KEY_SECRET")
	setString(&c.Archive.Bucket, "R2_BUCKET_NAME")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v, err := strconv.ParseBool(os.Getenv("LOG_DEVELOPMENT")); err == nil {
		c.Log.Development = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks driver names and that every duration and zone parses.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is empty")
	}
	for name, raw := range map[string]string{
		"verification.timeout": c.Verification.Timeout,
		"sweep.interval":       c.Sweep.Interval,
		"sweep.stale_after":    c.Sweep.StaleAfter,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}
	if _, err := time.LoadLocation(c.Missions.Timezone); err != nil {
		return fmt.Errorf("parsing missions.timezone: %w", err)
	}
	return nil
}

// VerificationTimeout is the per-adapter-call deadline.
func (c *Config) VerificationTimeout() time.Duration {
	return mustDuration(c.Verification.Timeout)
}

func (c *Config) SweepInterval() time.Duration {
	return mustDuration(c.Sweep.Interval)
}

func (c *Config) SweepStaleAfter() time.Duration {
	return mustDuration(c.Sweep.StaleAfter)
}

// Location is the zone that defines calendar days for rotation and streaks.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Missions.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ArchiveEnabled reports whether proof archival has a destination.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != "" && (c.Archive.AccountID != "" || c.Archive.Endpoint != "")
}

// ArchiveEndpoint returns the explicit endpoint or the R2 endpoint for the account.
func (c *Config) ArchiveEndpoint() string {
	if c.Archive.Endpoint != "" {
		return c.Archive.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.Archive.AccountID)
}

// Validate has already run, so parse errors cannot happen here.
func mustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}
