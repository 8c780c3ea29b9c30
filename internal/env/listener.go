package env

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Listener says where the game and HTTP servers listen.
type Listener struct {
	Host         string
	Port         int
	HTTPPort     string
	Reuseport    bool
	NumListeners int
}

// LoadListener reads the listener settings from v. Values come from bound
// flags, MOEP_* variables and an optional moep.yaml in one of paths, in
// viper's usual order of precedence.
func LoadListener(v *viper.Viper, paths ...string) (*Listener, error) {
	v.SetDefault("reuseport", true)
	v.SetDefault("listeners", 0)

	v.SetEnvPrefix("MOEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("moep")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	return &Listener{
		Host:         v.GetString("host"),
		Port:         v.GetInt("port"),
		HTTPPort:     v.GetString("http-port"),
		Reuseport:    v.GetBool("reuseport"),
		NumListeners: v.GetInt("listeners"),
	}, nil
}
