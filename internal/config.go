package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	LocalUserID string `env:"LOCAL_USER_ID,required=true" validate:"required"`
	AuthToken   string `env:"AUTH_TOKEN,required=true" validate:"required"`
	APIURL      string `env:"API_URL,required=true" validate:"required,url"`
	RealtimeURL string `env:"REALTIME_URL,required=true" validate:"required,url"`

	BufferSize       int           `env:"BUFFER_SIZE,default=1024" validate:"gt=0"`
	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT,default=10s" validate:"gt=0"`
	AckInterval      time.Duration `env:"ACK_INTERVAL,default=500ms" validate:"gte=0"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL,default=30s" validate:"gt=0"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=15s" validate:"gt=0"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	MetricsPort    int    `env:"METRICS_PORT,default=9090" validate:"gte=0,lte=65535"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
