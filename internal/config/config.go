package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	Tickets  TicketConfig
	Events   EventsConfig
	Archive  ArchiveConfig
}

// AppConfig controls the ops HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the ticket cache.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	TicketTTLSecs int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines ops API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token   string
	GuildID string
}

// OwnerAccess is what the ticket owner keeps after close.
type OwnerAccess string

const (
	OwnerAccessReadOnly OwnerAccess = "read_only"
	OwnerAccessNone     OwnerAccess = "none"
)

// TicketConfig holds lifecycle settings. Empty identities disable the
// dependent feature rather than failing startup.
type TicketConfig struct {
	StaffRoleID             string
	CategoryIDs             map[domain.TicketKind]string
	LogChannelID            string
	InactivityThresholdMins int
	InactivitySweepSeconds  int
	CloseCountdownSeconds   int
	StatusRefreshSeconds    int
	ReconcileSeconds        int
	ClosedOwnerAccess       OwnerAccess
}

// EventsConfig holds the optional AMQP broker settings.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// ArchiveConfig holds the optional S3-compatible transcript archive.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ownerAccess := OwnerAccess(strings.ToLower(getEnv("TICKET_CLOSED_OWNER_ACCESS", string(OwnerAccessReadOnly))))
	if ownerAccess != OwnerAccessReadOnly && ownerAccess != OwnerAccessNone {
		return nil, fmt.Errorf("invalid TICKET_CLOSED_OWNER_ACCESS: %q", ownerAccess)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          os.Getenv("REDIS_ADDR"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			TicketTTLSecs: getEnvAsInt("REDIS_TICKET_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Discord: DiscordConfig{
			Token:   os.Getenv("DISCORD_TOKEN"),
			GuildID: os.Getenv("DISCORD_GUILD_ID"),
		},
		Tickets: TicketConfig{
			StaffRoleID: os.Getenv("STAFF_ROLE_ID"),
			CategoryIDs: map[domain.TicketKind]string{
				domain.TicketKindClaim:   os.Getenv("CLAIM_CATEGORY_ID"),
				domain.TicketKindCustom:  os.Getenv("CUSTOM_CATEGORY_ID"),
				domain.TicketKindSupport: os.Getenv("SUPPORT_CATEGORY_ID"),
			},
			LogChannelID:            os.Getenv("TRANSCRIPT_LOG_CHANNEL_ID"),
			InactivityThresholdMins: getEnvAsInt("TICKET_INACTIVITY_THRESHOLD_MINUTES", 60),
			InactivitySweepSeconds:  getEnvAsInt("TICKET_INACTIVITY_SWEEP_SECONDS", 30),
			CloseCountdownSeconds:   getEnvAsInt("TICKET_CLOSE_COUNTDOWN_SECONDS", 5),
			StatusRefreshSeconds:    getEnvAsInt("TICKET_STATUS_REFRESH_SECONDS", 300),
			ReconcileSeconds:        getEnvAsInt("TICKET_RECONCILE_SECONDS", 600),
			ClosedOwnerAccess:       ownerAccess,
		},
		Events: EventsConfig{
			AMQPURL:  os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "tickets"),
		},
		Archive: ArchiveConfig{
			Endpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
			SecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
			Bucket:    getEnv("ARCHIVE_BUCKET", "ticket-transcripts"),
			UseSSL:    getEnvAsBool("ARCHIVE_USE_SSL", true),
		},
	}

	return cfg, nil
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

// TicketTTL is how long a cached ticket row may be served.
func (r RedisConfig) TicketTTL() time.Duration {
	if r.TicketTTLSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.TicketTTLSecs) * time.Second
}

// CategoryFor returns the parent category for kind, if configured.
func (t TicketConfig) CategoryFor(kind domain.TicketKind) (string, bool) {
	id := t.CategoryIDs[kind]
	return id, id != ""
}

// InactivityThreshold is the idle time after which an open ticket is auto-closed.
func (t TicketConfig) InactivityThreshold() time.Duration {
	return minutesOr(t.InactivityThresholdMins, 60)
}

// InactivitySweepInterval is how often the inactivity monitor runs.
func (t TicketConfig) InactivitySweepInterval() time.Duration {
	return secondsOr(t.InactivitySweepSeconds, 30)
}

// CloseCountdown is the visible delay between closing notice and deletion.
// Zero is allowed and deletes immediately.
func (t TicketConfig) CloseCountdown() time.Duration {
	if t.CloseCountdownSeconds < 0 {
		return 5 * time.Second
	}
	return time.Duration(t.CloseCountdownSeconds) * time.Second
}

// StatusRefreshInterval is how often control messages of open tickets are re-rendered.
func (t TicketConfig) StatusRefreshInterval() time.Duration {
	return secondsOr(t.StatusRefreshSeconds, 300)
}

// ReconcileInterval is how often Store/Platform divergence is swept.
func (t TicketConfig) ReconcileInterval() time.Duration {
	return secondsOr(t.ReconcileSeconds, 600)
}

func minutesOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Minute
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
