// Package config loads service configuration with viper: built-in defaults,
// then an optional YAML file, then ENGINE_* environment overrides
// (e.g. ENGINE_POSTGRES_URL, ENGINE_PAYOUT_MINIMUM_TOKENS).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ENGINE"

type Config struct {
	Server     Server     `mapstructure:"server"`
	Postgres   Postgres   `mapstructure:"postgres"`
	Redis      Redis      `mapstructure:"redis"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Clients    Clients    `mapstructure:"clients"`
	Detectors  Detectors  `mapstructure:"detectors"`
	Risk       Risk       `mapstructure:"risk"`
	Payout     Payout     `mapstructure:"payout"`
	Settlement Settlement `mapstructure:"settlement"`
	Schedule   Schedule   `mapstructure:"schedule"`
	RateLimit  RateLimit  `mapstructure:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminJWTSecret  string        `mapstructure:"admin_jwt_secret"`
	LogLevel        string        `mapstructure:"log_level"`
}

// Postgres is optional; an empty URL runs every store in memory.
type Postgres struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Redis is optional; an empty URL falls back to in-process per-actor locks.
type Redis struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// Kafka is optional; without brokers the raw event consumer and the outbox
// relay are not started.
type Kafka struct {
	Brokers        []string `mapstructure:"brokers"`
	RawEventsTopic string   `mapstructure:"raw_events_topic"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	ConsumerGroup  string   `mapstructure:"consumer_group"`
	Partitions     int32    `mapstructure:"partitions"`
	Replication    int16    `mapstructure:"replication"`
}

// Clients lists base URLs of external collaborators. Empty URLs use
// in-process fakes.
type Clients struct {
	WalletURL     string        `mapstructure:"wallet_url"`
	ComplianceURL string        `mapstructure:"compliance_url"`
	IdentityURL   string        `mapstructure:"identity_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Detectors struct {
	ClickFarmThreshold  int               `mapstructure:"click_farm_threshold"`
	ClickFarmWindow     time.Duration     `mapstructure:"click_farm_window"`
	BurstMultiplier     float64           `mapstructure:"burst_multiplier"`
	BurstFloorPerHour   int               `mapstructure:"burst_floor_per_hour"`
	BurstBaselineDays   int               `mapstructure:"burst_baseline_days"`
	RingMinSharedLinks  int               `mapstructure:"ring_min_shared_links"`
	RingMinSize         int               `mapstructure:"ring_min_size"`
	RingLookback        time.Duration     `mapstructure:"ring_lookback"`
	GeoSpoofDistanceKm  float64           `mapstructure:"geo_spoof_distance_km"`
	VPNRanges           []string          `mapstructure:"vpn_ranges"`
	IPLocations         map[string]string `mapstructure:"ip_locations"`
	VerificationHold    time.Duration     `mapstructure:"verification_hold"`
	EngagementLookback  time.Duration     `mapstructure:"engagement_lookback"`
	SweepRecordLookback time.Duration     `mapstructure:"sweep_record_lookback"`
}

type Risk struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type Payout struct {
	Currency             string             `mapstructure:"currency"`
	MinimumTokens        float64            `mapstructure:"minimum_tokens"`
	CPIRate              float64            `mapstructure:"cpi_rate"`
	CPARate              float64            `mapstructure:"cpa_rate"`
	CPSRate              float64            `mapstructure:"cps_rate"`
	RevSharePercentage   float64            `mapstructure:"revshare_percentage"`
	RevShareDurationDays int                `mapstructure:"revshare_duration_days"`
	HybridComponents     []string           `mapstructure:"hybrid_components"`
	TierMultipliers      map[string]float64 `mapstructure:"tier_multipliers"`
	RegionMultipliers    map[string]float64 `mapstructure:"region_multipliers"`
}

type Settlement struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       uint64        `mapstructure:"max_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	BreakerFailures  int           `mapstructure:"breaker_failures"`
	BreakerSuccesses int           `mapstructure:"breaker_successes"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	BatchSize        int           `mapstructure:"batch_size"`
}

type Schedule struct {
	FastSweep       time.Duration `mapstructure:"fast_sweep"`
	RingSweep       time.Duration `mapstructure:"ring_sweep"`
	SettlementSweep time.Duration `mapstructure:"settlement_sweep"`
	OutboxRelay     time.Duration `mapstructure:"outbox_relay"`
}

// RateLimit bounds public tracking calls per client IP. PerIP of zero
// disables the guard.
type RateLimit struct {
	PerIP  int           `mapstructure:"per_ip"`
	Window time.Duration `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.admin_jwt_secret", "")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.raw_events_topic", "attribution.raw-events")
	v.SetDefault("kafka.audit_topic", "engine.audit")
	v.SetDefault("kafka.consumer_group", "attribution-engine")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("kafka.replication", 1)

	v.SetDefault("clients.timeout", 5*time.Second)

	v.SetDefault("detectors.click_farm_threshold", 6)
	v.SetDefault("detectors.click_farm_window", 24*time.Hour)
	v.SetDefault("detectors.burst_multiplier", 3.0)
	v.SetDefault("detectors.burst_floor_per_hour", 100)
	v.SetDefault("detectors.burst_baseline_days", 7)
	v.SetDefault("detectors.ring_min_shared_links", 2)
	v.SetDefault("detectors.ring_min_size", 3)
	v.SetDefault("detectors.ring_lookback", 30*24*time.Hour)
	v.SetDefault("detectors.geo_spoof_distance_km", 500.0)
	v.SetDefault("detectors.vpn_ranges", []string{})
	v.SetDefault("detectors.ip_locations", map[string]string{})
	v.SetDefault("detectors.verification_hold", 24*time.Hour)
	v.SetDefault("detectors.engagement_lookback", 30*24*time.Hour)
	v.SetDefault("detectors.sweep_record_lookback", 8*24*time.Hour)

	v.SetDefault("risk.lock_timeout", 10*time.Second)

	v.SetDefault("payout.currency", "TOKEN")
	v.SetDefault("payout.minimum_tokens", 1000.0)
	v.SetDefault("payout.cpi_rate", 10.0)
	v.SetDefault("payout.cpa_rate", 25.0)
	v.SetDefault("payout.cps_rate", 50.0)
	v.SetDefault("payout.revshare_percentage", 10.0)
	v.SetDefault("payout.revshare_duration_days", 180)
	v.SetDefault("payout.hybrid_components", []string{"CPI", "CPA", "CPS", "RevShare"})
	v.SetDefault("payout.tier_multipliers", map[string]float64{
		"standard": 1.0,
		"silver":   1.1,
		"gold":     1.25,
		"platinum": 1.5,
	})
	v.SetDefault("payout.region_multipliers", map[string]float64{})

	v.SetDefault("settlement.timeout", 5*time.Second)
	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.initial_backoff", 200*time.Millisecond)
	v.SetDefault("settlement.breaker_failures", 5)
	v.SetDefault("settlement.breaker_successes", 2)
	v.SetDefault("settlement.breaker_cooldown", 30*time.Second)
	v.SetDefault("settlement.batch_size", 50)

	v.SetDefault("schedule.fast_sweep", 5*time.Minute)
	v.SetDefault("schedule.ring_sweep", time.Hour)
	v.SetDefault("schedule.settlement_sweep", time.Minute)
	v.SetDefault("schedule.outbox_relay", 5*time.Second)

	v.SetDefault("rate_limit.per_ip", 600)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Load reads configuration. path may be empty, in which case only defaults and
// environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.AdminJWTSecret == "" {
		errs = append(errs, errors.New("server.admin_jwt_secret is required"))
	}
	if c.Detectors.ClickFarmThreshold < 1 {
		errs = append(errs, errors.New("detectors.click_farm_threshold must be positive"))
	}
	if c.Detectors.RingMinSize < 2 {
		errs = append(errs, errors.New("detectors.ring_min_size must be at least 2"))
	}
	if c.RateLimit.PerIP < 0 {
		errs = append(errs, errors.New("rate_limit.per_ip must not be negative"))
	}
	if c.Payout.MinimumTokens < 0 {
		errs = append(errs, errors.New("payout.minimum_tokens must not be negative"))
	}
	if c.Payout.RevSharePercentage < 0 || c.Payout.RevSharePercentage > 100 {
		errs = append(errs, errors.New("payout.revshare_percentage must be within [0,100]"))
	}
	return errors.Join(errs...)
}
