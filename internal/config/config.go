// Package config resolves lastclick settings once at process start.
//
// Sources, highest precedence first:
//
//  1. command-line flags
//  2. the YAML file named by --config
//  3. process environment (LASTCLICK_DB, LASTCLICK_PUSHGATEWAY, LASTCLICK_LISTEN)
//  4. a .env file, read with godotenv
//  5. built-in defaults
//
// The resolved Config is passed explicitly to whatever needs it; nothing
// below the CLI reads the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvDatabase    = "LASTCLICK_DB"
	EnvPushGateway = "LASTCLICK_PUSHGATEWAY"
	EnvListen      = "LASTCLICK_LISTEN"
)

// DefaultListen is the read API address when none is configured.
const DefaultListen = "127.0.0.1:8080"

// DefaultEnvFile is read when present; a missing file is not an error.
const DefaultEnvFile = ".env"

// ErrNoDatabase is returned by RequireDatabase when no store location was
// configured anywhere.
var ErrNoDatabase = errors.New("no database configured (use --db, the config file, or " + EnvDatabase + ")")

// Config holds the resolved settings.
type Config struct {
	// Database is the path of the SQLite store.
	Database string `yaml:"database"`

	// PushGateway is the Prometheus Pushgateway URL for run metrics. Empty
	// disables pushing.
	PushGateway string `yaml:"pushgateway"`

	// Listen is the address of the read API.
	Listen string `yaml:"listen"`
}

// Options names the sources Load consults.
type Options struct {
	// File is the YAML config file. Empty skips it.
	File string

	// EnvFile is the dotenv file. Empty means DefaultEnvFile.
	EnvFile string

	// Flags holds values given on the command line. Empty fields are unset.
	Flags Config

	// Getenv reads the process environment. Nil means os.Getenv.
	Getenv func(string) string
}

// Load merges all sources into one Config.
func Load(opts Options) (Config, error) {
	cfg := Config{Listen: DefaultListen}

	env, err := readEnv(opts)
	if err != nil {
		return Config{}, err
	}
	cfg.merge(env)

	if opts.File != "" {
		file, err := LoadFile(opts.File)
		if err != nil {
			return Config{}, err
		}
		cfg.merge(file)
	}

	cfg.merge(opts.Flags)
	return cfg, nil
}

// LoadFile parses a YAML config file. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// RequireDatabase returns ErrNoDatabase if no store location is set.
func (c Config) RequireDatabase() error {
	if c.Database == "" {
		return ErrNoDatabase
	}
	return nil
}

// merge overwrites c with the non-empty fields of other.
func (c *Config) merge(other Config) {
	if other.Database != "" {
		c.Database = other.Database
	}
	if other.PushGateway != "" {
		c.PushGateway = other.PushGateway
	}
	if other.Listen != "" {
		c.Listen = other.Listen
	}
}

// readEnv resolves the environment layer: process variables win over the
// dotenv file.
func readEnv(opts Options) (Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || opts.EnvFile != "" {
			return Config{}, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}

	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	return Config{
		Database:    lookup(EnvDatabase),
		PushGateway: lookup(EnvPushGateway),
		Listen:      lookup(EnvListen),
	}, nil
}
