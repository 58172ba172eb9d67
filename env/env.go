package env

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// DefaultEnvFile is picked up from the working directory when present.
const DefaultEnvFile = ".env"

// InitConfig fills config from the process environment, reading DefaultEnvFile first
// if it exists. Variables already set in the environment win over the file.
func InitConfig(config any) error {
	// nolint:errcheck // .env file is optional, failure is acceptable
	_ = godotenv.Load(DefaultEnvFile)

	return Process(config)
}

// LoadFile loads an explicitly requested dotenv file. Unlike DefaultEnvFile,
// a missing file is an error.
func LoadFile(path string) error {
	if path == "" {
		return errors.New("empty env file path")
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}

// Process fills config from the environment only.
func Process(config any) error {
	if err := envconfig.Process("", config); err != nil {
		return errors.Wrap(err, "failed to envconfig.Process")
	}

	return nil
}
