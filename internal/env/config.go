package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the tunables read from the environment. Listener addresses
// come from flags instead, see LoadListener.
type Config struct {
	DebugHTTP bool `env:"MOEP_DEBUG_HTTP"`
	Debug     bool `env:"MOEP_DEBUG"`

	ColorWishTimeout time.Duration `env:"MOEP_COLOR_WISH_TIMEOUT,default=60s"`
	MaxLineLength    int           `env:"MOEP_MAX_LINE_LENGTH,default=4096"`
	WriteTimeout     time.Duration `env:"MOEP_WRITE_TIMEOUT,default=5s"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
