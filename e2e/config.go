package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MESSENGER_ADDR points the suite at a live server (host:port).
	// Leaving it empty skips every e2e test.
	Addr string `envconfig:"MESSENGER_ADDR"`
	// E2E_DEBUG_JSON allows dumping full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
