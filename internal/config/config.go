package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env      string `env:"ENV" env-required:"true"`
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Push     PushConfig
	Tasks    TasksConfig
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-required:"true"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-required:"true"`
	Password       string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Database       string        `env:"POSTGRES_DATABASE" env-required:"true"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD" env-default:""`
	DB          int           `env:"REDIS_DB" env-default:"0"`
	PingTimeout time.Duration `env:"REDIS_PING_TIMEOUT" env-default:"5s"`
}

type JWTConfig struct {
	Issuer          string        `env:"JWT_ISSUER" env-required:"true"`
	SigningKey      string        `env:"JWT_SIGNING_KEY" env-required:"true"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TOKEN_TTL" env-default:"720h"`
}

type PushConfig struct {
	// VAPID keys are required only by the dispatcher binary;
	// the API server runs without them.
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY" env-default:""`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY" env-default:""`
	Subscriber      string `env:"PUSH_SUBSCRIBER" env-default:"mailto:admin@localhost"`
	TTL             int    `env:"PUSH_TTL" env-default:"3600"`
}

type TasksConfig struct {
	// GraceDelay is the undo window after completing a task.
	GraceDelay time.Duration `env:"TASK_GRACE_DELAY" env-default:"5s"`
	// Completed tasks older than PurgeMaxAge are removed every
	// PurgeInterval.
	PurgeMaxAge   time.Duration `env:"TASK_PURGE_MAX_AGE" env-default:"8h"`
	PurgeInterval time.Duration `env:"TASK_PURGE_INTERVAL" env-default:"1h"`
}
