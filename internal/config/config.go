package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev prod"`

	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	HttpAccessLog  bool     `env:"HTTP_ACCESS_LOG"  envDefault:"false"`
	PublicDir      string   `env:"PUBLIC_DIR"       envDefault:"public"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envSeparator:","`

	HistoryLimit       int    `env:"HISTORY_LIMIT"        envDefault:"30"        validate:"min=1,max=500"`
	DefaultDisplayName string `env:"DEFAULT_DISPLAY_NAME" envDefault:"Anonymous" validate:"required,max=20"`
	DisplayNameMax     int    `env:"DISPLAY_NAME_MAX"     envDefault:"20"        validate:"min=1,max=64"`

	WsSendBuffer      int     `env:"WS_SEND_BUFFER"         envDefault:"256"      validate:"min=1"`
	WsMaxMessageBytes int64   `env:"WS_MAX_MESSAGE_BYTES"   envDefault:"16777216" validate:"min=1024"`
	WsMessagesPerSec  float64 `env:"WS_MESSAGES_PER_SECOND" envDefault:"200"      validate:"gt=0"`
	WsMessageBurst    int     `env:"WS_MESSAGE_BURST"       envDefault:"400"      validate:"min=1"`

	RedisEnabled       bool          `env:"REDIS_ENABLED"        envDefault:"false"`
	RedisHost          string        `env:"REDIS_HOST"           envDefault:"localhost"`
	RedisPort          uint16        `env:"REDIS_PORT"           envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDb            int           `env:"REDIS_DB"             envDefault:"0"    validate:"min=0"`
	RoomReservationTTL time.Duration `env:"ROOM_RESERVATION_TTL" envDefault:"24h"  validate:"min=1m"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"canvas_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"canvas_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"canvas_db"`

	ActivityArchiveEnabled bool `env:"ACTIVITY_ARCHIVE_ENABLED" envDefault:"false"`
}

var ErrArchiveNeedsBackends = errors.New("ACTIVITY_ARCHIVE_ENABLED requires REDIS_ENABLED and POSTGRES_ENABLED")

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if cfg.ActivityArchiveEnabled && !(cfg.RedisEnabled && cfg.PostgresEnabled) {
		zap.L().Error("config_validation_failed", zap.Error(ErrArchiveNeedsBackends))
		return nil, ErrArchiveNeedsBackends
	}
	return cfg, nil
}
