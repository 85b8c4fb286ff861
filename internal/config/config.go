package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App        AppConfig
	Discord    DiscordConfig
	Tickets    TicketConfig
	Engagement EngagementConfig
	Rewards    RewardsConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Logger     LoggerConfig
}

// AppConfig controls the HTTP side of the process.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DiscordConfig holds gateway credentials and community identifiers.
type DiscordConfig struct {
	Token             string
	ApplicationID     string
	GuildID           string
	HandlerTimeoutSec int
}

// TicketConfig drives channel provisioning and privilege checks.
type TicketConfig struct {
	CategoryID      string
	LogChannelID    string
	PrivilegedRoles []string
}

// EngagementConfig parameterizes XP awards and the level curve.
type EngagementConfig struct {
	LedgerBackend string
	LedgerPath    string
	MinLength     int
	Cooldown      time.Duration
	BaseAward     int
	CharsPerXP    int
	MaxAward      int
	// Needed XP for level L is CurveA*L*L + CurveB*L + CurveC.
	CurveA        int
	CurveB        int
	CurveC        int
	CarryOverflow bool
	AnnounceLevel bool
}

// RewardsConfig points at the YAML rule file; RawRules is the env fallback.
type RewardsConfig struct {
	File     string
	RawRules string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// KafkaConfig enables exporting domain events.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
}

// AuthConfig guards the dashboard API. An empty secret leaves it open.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "community-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: env.asInt("HTTP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Discord: DiscordConfig{
			Token:             os.Getenv("TOKEN"),
			ApplicationID:     os.Getenv("CLIENT_ID"),
			GuildID:           os.Getenv("GUILD_ID"),
			HandlerTimeoutSec: env.asInt("DISCORD_HANDLER_TIMEOUT_SECONDS", 30),
		},
		Tickets: TicketConfig{
			CategoryID:      os.Getenv("TICKET_CATEGORY_ID"),
			LogChannelID:    os.Getenv("LOG_CHANNEL_ID"),
			PrivilegedRoles: getEnvAsList("STAFF_ROLE_ID"),
		},
		Engagement: EngagementConfig{
			LedgerBackend: getEnv("LEDGER_BACKEND", "file"),
			LedgerPath:    getEnv("LEDGER_PATH", "levels.json"),
			MinLength:     env.asInt("ENGAGEMENT_MIN_LENGTH", 5),
			Cooldown:      env.asDuration("ENGAGEMENT_COOLDOWN", time.Minute),
			BaseAward:     env.asInt("ENGAGEMENT_BASE_AWARD", 5),
			CharsPerXP:    env.asInt("ENGAGEMENT_CHARS_PER_XP", 10),
			MaxAward:      env.asInt("ENGAGEMENT_MAX_AWARD", 25),
			CurveA:        env.asInt("ENGAGEMENT_CURVE_A", 5),
			CurveB:        env.asInt("ENGAGEMENT_CURVE_B", 50),
			CurveC:        env.asInt("ENGAGEMENT_CURVE_C", 100),
			CarryOverflow: env.asBool("ENGAGEMENT_CARRY_OVERFLOW", false),
			AnnounceLevel: env.asBool("ENGAGEMENT_ANNOUNCE_LEVEL_UP", true),
		},
		Rewards: RewardsConfig{
			File:     os.Getenv("REWARDS_FILE"),
			RawRules: os.Getenv("REWARD_RULES"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(env.asInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(env.asInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  env.asBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(env.asInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(env.asInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       env.asInt("REDIS_DB", 0),
			Enabled:  env.asBool("REDIS_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsList("KAFKA_BROKERS"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "community-bot"),
			Topic:    getEnv("KAFKA_TOPIC", "community-bot.events"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("API_JWT_SECRET"),
			TokenTTL:  env.asDuration("API_TOKEN_TTL", 30*24*time.Hour),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
	}
	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}

	if cfg.Engagement.LedgerBackend == "redis" {
		cfg.Redis.Enabled = true
	}

	return cfg, nil
}

// Validate checks values required to connect to the gateway.
func (c *Config) Validate() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "TOKEN")
	}
	if c.Discord.GuildID == "" {
		missing = append(missing, "GUILD_ID")
	}
	if len(c.Tickets.PrivilegedRoles) == 0 {
		missing = append(missing, "STAFF_ROLE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Engagement.LedgerBackend != "file" && c.Engagement.LedgerBackend != "redis" {
		return fmt.Errorf("invalid LEDGER_BACKEND %q", c.Engagement.LedgerBackend)
	}
	return c.Engagement.Validate()
}

// Validate rejects settings that would leave awards uncapped or let the
// level curve stop growing.
func (e EngagementConfig) Validate() error {
	var invalid []string
	if e.MinLength < 0 {
		invalid = append(invalid, "ENGAGEMENT_MIN_LENGTH must not be negative")
	}
	if e.Cooldown < 0 {
		invalid = append(invalid, "ENGAGEMENT_COOLDOWN must not be negative")
	}
	if e.CharsPerXP < 0 {
		invalid = append(invalid, "ENGAGEMENT_CHARS_PER_XP must not be negative")
	}
	if e.MaxAward < 1 {
		invalid = append(invalid, "ENGAGEMENT_MAX_AWARD must be at least 1")
	}
	if e.CurveA < 0 || e.CurveB < 0 || e.CurveA+e.CurveB == 0 {
		invalid = append(invalid, "ENGAGEMENT_CURVE_A and ENGAGEMENT_CURVE_B must be non-negative and not both zero")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid engagement settings: %s", strings.Join(invalid, "; "))
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HandlerTimeout bounds the work done for a single gateway event.
func (d DiscordConfig) HandlerTimeout() time.Duration {
	if d.HandlerTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.HandlerTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envReader parses typed settings and collects every malformed value so Load
// can report them together.
type envReader struct {
	errs []error
}

func (r *envReader) asInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) asBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) asDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
