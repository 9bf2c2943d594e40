package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BufferSize      int           `envconfig:"E2E_BUFFER_SIZE" default:"64"`
	NumberOfWorkers int           `envconfig:"E2E_NUMBER_OF_WORKERS" default:"2"`
	SinkTimeout     time.Duration `envconfig:"E2E_SINK_TIMEOUT" default:"1s"`
	RestartInterval time.Duration `envconfig:"E2E_RESTART_INTERVAL" default:"50ms"`
	// E2E_WAIT bounds how long scenarios wait for asynchronous snapshots
	Wait time.Duration `envconfig:"E2E_WAIT" default:"3s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
