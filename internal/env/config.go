package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config carries the operator-facing knobs the CLI needs that aren't part
// of the wire protocol itself: where to dial by default, how long to wait
// at each run-loop phase, and how chatty to log.
type Config struct {
	Host     string `env:"REDIGO3_HOST,default=127.0.0.1"`
	Port     int    `env:"REDIGO3_PORT,default=6379"`
	Username string `env:"REDIGO3_USERNAME"`
	Password string `env:"REDIGO3_PASSWORD"`

	ConnectTimeout time.Duration `env:"REDIGO3_CONNECT_TIMEOUT,default=5s"`
	PingInterval   time.Duration `env:"REDIGO3_PING_INTERVAL,default=1s"`

	LogLevel string `env:"REDIGO3_LOG_LEVEL,default=info"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
