package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MASTER_ADDR is the gRPC address of a running hub, the suites are skipped when empty
	MasterAddr string `envconfig:"MASTER_ADDR"`
	JwtSecret  string `envconfig:"JWT_SECRET"`
	Passphrase string `envconfig:"CIPHER_PASSPHRASE"`
	Salt       string `envconfig:"CIPHER_SALT"`
	// E2E_DEBUG_JSON allows dumping full unary request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
