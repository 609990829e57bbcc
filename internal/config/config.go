package config

import (
	"errors"
	"fmt"
	"os"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	development environment = "development"
)

type Config struct {
	apiKey string
	env    environment
}

func (c *Config) APIKey() string {
	return c.apiKey
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, ...}", string(c.env))
}

// ConfigFromEnv reads the client configuration from the environment.
// GERMANMINER_ENVIRONMENT defaults to production when unset; the API key is
// optional here since it may be passed explicitly at client construction.
func ConfigFromEnv() (Config, error) {
	env := production
	if rawEnv, ok := os.LookupEnv("GERMANMINER_ENVIRONMENT"); ok && rawEnv != "" {
		switch rawEnv {
		case "production":
			env = production
		case "development":
			env = development
		default:
			return Config{}, fmt.Errorf("%w: GERMANMINER_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
		}
	}

	apiKey := os.Getenv("GERMANMINER_API_KEY")

	return Config{
		apiKey: apiKey,
		env:    env,
	}, nil
}
