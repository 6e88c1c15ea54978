package config

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the medrecords service and CLI.
type Config struct {
	Addr           string        `env:"ADDR,default=:8080"`
	DBDSN          string        `env:"DB_DSN,required"`
	DBLogLevel     string        `env:"DB_LOG_LEVEL,default=warn"`
	LogFormat      string        `env:"LOG_FORMAT,default=json"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	LoginRateLimit int           `env:"LOGIN_RATE_LIMIT,default=10"`
	SessionKey     string        `env:"SESSION_SIGNING_KEY,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL,default=12h"`
	AdminSetupKey  string        `env:"ADMIN_SETUP_KEY"`

	Audit AuditConfig `env:", prefix=AUDIT_"`
	S3    S3Config    `env:", prefix=S3_"`
}

// AuditConfig controls how audit events leave the database.
type AuditConfig struct {
	// NATSURL enables the outbox relay when set.
	NATSURL       string        `env:"NATS_URL"`
	Stream        string        `env:"STREAM,default=AUDIT"`
	StreamMaxAge  time.Duration `env:"STREAM_MAX_AGE,default=0s"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL,default=2s"`
	RelayBatch    int           `env:"RELAY_BATCH,default=100"`
}

// S3Config describes the bucket lab slips are stored in. Uploads are disabled
// when Endpoint is empty.
type S3Config struct {
	Endpoint       string        `env:"ENDPOINT"`
	AccessKey      string        `env:"ACCESS_KEY"`
	SecretKey      string        `env:"SECRET_KEY"`
	Region         string        `env:"REGION,default=us-east-1"`
	Bucket         string        `env:"BUCKET,default=medical-files"`
	DisableTLS     bool          `env:"DISABLE_TLS,default=false"`
	ForcePathStyle bool          `env:"FORCE_PATH_STYLE,default=true"`
	PublicBaseURL  string        `env:"PUBLIC_BASE_URL"`
	PresignTTL     time.Duration `env:"PRESIGN_TTL,default=0s"`
}

// Load reads an optional .env file and returns a Config populated from the
// environment.
func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom returns a Config populated from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
