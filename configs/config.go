package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Email        EmailConfig
	Redis        RedisConfig
	Log          LogConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	Storage      StorageConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// MigrationsPath is a directory of SQL migrations; empty uses the embedded set.
	MigrationsPath string
}

// JWTConfig is optional. Without a secret no session is issued on confirmation.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

type EmailConfig struct {
	Provider       string // sendgrid, smtp or log
	SendGridAPIKey string
	From           string
	SMTPHost       string
	SMTPPort       int
	SMTPTLS        bool
	SMTPUsername   string
	SMTPPassword   string
	SMTPTimeout    time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
	// CacheTTL bounds how long permanent-user lookups stay cached.
	CacheTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

type RateLimitConfig struct {
	RequestsPerMinute int
	BurstMultiplier   float64
	Window            time.Duration
	KeyPrefix         string
}

type VerificationConfig struct {
	URL              string
	URLLength        int
	IdentityField    string
	PasswordField    string
	TokenField       string
	ExpirationSecs   int
	SendConfirmation bool
	HashPassword     bool
	BcryptCost       int
	ExposeToken      bool

	VerifyMailFrom     string
	VerifyMailSubject  string
	VerifyMailHTML     string
	VerifyMailText     string
	ConfirmMailFrom    string
	ConfirmMailSubject string
	ConfirmMailHTML    string
	ConfirmMailText    string
}

type StorageConfig struct {
	StagingBackend   string // redis, postgres or memory
	PermanentBackend string // postgres or memory
	SweepInterval    time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	defaults := verification.DefaultOptions()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS"),
			Environment:    getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "signup_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", ""),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			Issuer:         getEnv("JWT_ISSUER", "signup-verification"),
			AccessTokenTTL: getDurationEnv("JWT_ACCESS_TTL", 15*time.Minute),
		},
		Email: EmailConfig{
			Provider:       getEnv("EMAIL_PROVIDER", "log"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			From:           getEnv("FROM_EMAIL", defaults.VerifyMail.From),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getIntEnv("SMTP_PORT", 587),
			SMTPTLS:        getBoolEnv("SMTP_TLS", true),
			SMTPUsername:   getEnv("SMTP_USERNAME", ""),
			SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
			SMTPTimeout:    getDurationEnv("SMTP_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getBoolEnv("REDIS_ENABLED", true),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			CacheTTL:     getDurationEnv("REDIS_CACHE_TTL", 3*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_RPM", 30),
			BurstMultiplier:   getFloatEnv("RATE_LIMIT_BURST", 1.0),
			Window:            getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			KeyPrefix:         getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:signup"),
		},
		Verification: VerificationConfig{
			URL:              getEnv("VERIFICATION_URL", defaults.VerificationURL),
			URLLength:        getIntEnv("VERIFICATION_URL_LENGTH", defaults.URLLength),
			IdentityField:    getEnv("VERIFICATION_IDENTITY_FIELD", defaults.IdentityField),
			PasswordField:    getEnv("VERIFICATION_PASSWORD_FIELD", defaults.PasswordField),
			TokenField:       getEnv("VERIFICATION_TOKEN_FIELD", defaults.TokenField),
			ExpirationSecs:   getIntEnv("VERIFICATION_EXPIRATION", int(defaults.Expiration/time.Second)),
			SendConfirmation: getBoolEnv("VERIFICATION_SEND_CONFIRMATION", defaults.SendConfirmationEmail),
			HashPassword:     getBoolEnv("VERIFICATION_HASH_PASSWORD", true),
			BcryptCost:       getIntEnv("VERIFICATION_BCRYPT_COST", 10),
			ExposeToken:      getBoolEnv("VERIFICATION_EXPOSE_TOKEN", false),

			VerifyMailFrom:     getEnv("VERIFY_MAIL_FROM", ""),
			VerifyMailSubject:  getEnv("VERIFY_MAIL_SUBJECT", defaults.VerifyMail.Subject),
			VerifyMailHTML:     getEnv("VERIFY_MAIL_HTML", defaults.VerifyMail.HTML),
			VerifyMailText:     getEnv("VERIFY_MAIL_TEXT", defaults.VerifyMail.Text),
			ConfirmMailFrom:    getEnv("CONFIRM_MAIL_FROM", ""),
			ConfirmMailSubject: getEnv("CONFIRM_MAIL_SUBJECT", defaults.ConfirmMail.Subject),
			ConfirmMailHTML:    getEnv("CONFIRM_MAIL_HTML", defaults.ConfirmMail.HTML),
			ConfirmMailText:    getEnv("CONFIRM_MAIL_TEXT", defaults.ConfirmMail.Text),
		},
		Storage: StorageConfig{
			StagingBackend:   strings.ToLower(getEnv("STAGING_BACKEND", BackendRedis)),
			PermanentBackend: strings.ToLower(getEnv("PERMANENT_BACKEND", BackendPostgres)),
			SweepInterval:    getDurationEnv("STAGING_SWEEP_INTERVAL", time.Minute),
		},
	}

	// Build database DSN
	cfg.Database.DSN = getEnv("DATABASE_URL", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend selection. Verification options are checked by VerificationOptions.
func (c *Config) Validate() error {
	switch c.Storage.StagingBackend {
	case BackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("STAGING_BACKEND=redis requires REDIS_ENABLED")
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown STAGING_BACKEND %q", c.Storage.StagingBackend)
	}
	switch c.Storage.PermanentBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown PERMANENT_BACKEND %q", c.Storage.PermanentBackend)
	}
	return nil
}

// NeedsDatabase reports whether either store lives in Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Storage.StagingBackend == BackendPostgres || c.Storage.PermanentBackend == BackendPostgres
}

// VerificationOptions merges the configured values over the defaults and validates them.
func (c *Config) VerificationOptions() (verification.Options, error) {
	v := c.Verification
	from := func(override string) string {
		if override != "" {
			return override
		}
		return c.Email.From
	}
	return verification.DefaultOptions().With(
		verification.WithVerificationURL(v.URL),
		verification.WithURLLength(v.URLLength),
		verification.WithIdentityField(v.IdentityField),
		verification.WithPasswordField(v.PasswordField),
		verification.WithTokenField(v.TokenField),
		verification.WithExpiration(v.ExpirationSecs),
		verification.WithSendConfirmationEmail(v.SendConfirmation),
		verification.WithVerifyMail(verification.MailTemplate{
			From:    from(v.VerifyMailFrom),
			Subject: v.VerifyMailSubject,
			HTML:    v.VerifyMailHTML,
			Text:    v.VerifyMailText,
		}),
		verification.WithConfirmMail(verification.MailTemplate{
			From:    from(v.ConfirmMailFrom),
			Subject: v.ConfirmMailSubject,
			HTML:    v.ConfirmMailHTML,
			Text:    v.ConfirmMailText,
		}),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
