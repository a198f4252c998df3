package kobuki

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"

	"github.com/kobuki-driver/kobuki/driver/kobukierrors"
)

// Config is the complete set of parameters the driver and the daemon
// wrapping it need at start-up. YAML fields carry the base's own
// settings; env fields let the ambient surface (HTTP, JWT) be overridden
// per-deployment without touching the checked-in file.
type Config struct {
	DevicePort       string `yaml:"device_port"`
	ProtocolVersion  string `yaml:"protocol_version"`
	Simulation       bool   `yaml:"simulation"`
	SigslotNamespace string `yaml:"sigslots_namespace"`

	LogLevel             string `yaml:"log_level" env:"KOBUKI_LOG_LEVEL" envDefault:"info"`
	HTTPAddr             string `yaml:"http_addr" env:"KOBUKI_HTTP_ADDR" envDefault:":8080"`
	JWTSecret            string `yaml:"jwt_secret" env:"KOBUKI_JWT_SECRET"`
	OperatorPasswordHash string `yaml:"operator_password_hash" env:"KOBUKI_OPERATOR_PASSWORD_HASH"`
}

// LoadConfig reads a YAML config file at path, then overlays any set
// environment variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	f, err := os.Open(path)
	if err != nil {
		return cfg, kobukierrors.ConfigurationError{Reason: err.Error()}
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, kobukierrors.ConfigurationError{Reason: err.Error()}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, kobukierrors.ConfigurationError{Reason: err.Error()}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.Simulation && c.DevicePort == "" {
		return kobukierrors.ConfigurationError{Reason: "device_port is required unless simulation is enabled"}
	}
	if c.ProtocolVersion == "" {
		return kobukierrors.ConfigurationError{Reason: "protocol_version is required"}
	}
	if c.SigslotNamespace == "" {
		return kobukierrors.ConfigurationError{Reason: "sigslots_namespace is required"}
	}
	return nil
}
