package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App     `yaml:"app"`
		CardDAV `yaml:"carddav"`
		Log     `yaml:"logger"`
	}

	App struct {
		Env     string `yaml:"env"     env-default:"local"`
		Name    string `yaml:"name"    env-default:"everest"`
		Version string `yaml:"version" env-default:"dev"     env:"APP_VERSION"`
	}

	CardDAV struct {
		Host    string        `yaml:"host"           env-required:"true"         env:"CARDDAV_HOST"`
		Auth    string        `yaml:"auth"           env-default:"basic://user@" env:"CARDDAV_AUTH"`
		Timeout time.Duration `yaml:"timeout"        env-default:"10s"`
		// LenientStatus accepts any status on create and delete.
		LenientStatus bool `yaml:"lenient_status"`
		Concurrency   int  `yaml:"concurrency"` // 0 means DefaultConcurrency
	}

	Log struct {
		Level string `yaml:"log_level" env-default:"info" env:"LOG_LEVEL"`
	}
)

const (
	DefaultConcurrency = 4

	EnvConfigPathName  = "CONFIG-PATH"
	FlagConfigPathName = "config"
)

var (
	configPath string
	instance   *Config
	once       sync.Once
)

// Load reads the YAML file at path, then applies environment overrides and
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("config - Load - cleanenv.ReadConfig: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config - Load: %w", err)
	}
	return cfg, nil
}

// LoadEnv builds the config from the environment only.
func LoadEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config - LoadEnv - cleanenv.ReadEnv: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config - LoadEnv: %w", err)
	}
	return cfg, nil
}

// validate runs after cleanenv, so an unset concurrency is still zero here.
func (c *Config) validate() error {
	switch {
	case c.CardDAV.Concurrency < 0:
		return fmt.Errorf("carddav.concurrency must not be negative, got %d", c.CardDAV.Concurrency)
	case c.CardDAV.Concurrency == 0:
		c.CardDAV.Concurrency = DefaultConcurrency
	}
	return nil
}

// GetConfig returns app configs.
func GetConfig() *Config {
	once.Do(func() {
		flag.StringVar(
			&configPath,
			FlagConfigPathName,
			"",
			"this is app config file",
		)
		flag.Parse()

		if configPath == "" {
			configPath = os.Getenv(EnvConfigPathName)
		}

		var err error
		if configPath == "" {
			instance, err = LoadEnv()
		} else {
			instance, err = Load(configPath)
		}
		if err != nil {
			helpText := "Everest - CardDAV contacts client"
			help, _ := cleanenv.GetDescription(&Config{}, &helpText)
			log.Print(help)
			log.Fatal(err)
		}
	})
	return instance
}
