package scheduler

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled  bool   `envconfig:"SYNC_ENABLED" default:"true"`
	CronSpec string `envconfig:"SYNC_CRON" default:"@every 1m"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
