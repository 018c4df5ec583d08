package fetcher

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config carries the broker base URLs. Empty values fall back to each
// connector's production endpoint.
type Config struct {
	AsterBaseURL      string `envconfig:"ASTER_BASE_URL"`
	OandaBaseURL      string `envconfig:"OANDA_BASE_URL"`
	TastytradeBaseURL string `envconfig:"TASTYTRADE_BASE_URL"`
	TradierBaseURL    string `envconfig:"TRADIER_BASE_URL"`
	ApexBaseURL       string `envconfig:"APEX_BASE_URL"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
