// Package config resolves the fleet configuration: which servers to target
// and the per-server user and ssh options the dispatcher needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/andrej220/fleetrun/pkg/config/configstore"
	"github.com/andrej220/fleetrun/pkg/config/filestore"
	"github.com/andrej220/fleetrun/pkg/config/mongostore"
)

// FileName is the config file looked up in the cwd and the user config dir.
const FileName = "fleetrun.yaml"

const (
	mongoDatabase   = "fleetrun"
	mongoCollection = "configs"
	mongoDocumentID = "default"
)

// Config is the fully resolved fleet inventory. Missing map entries resolve
// to the empty string, never an error.
type Config struct {
	Servers     []string          `yaml:"servers" bson:"servers" validate:"required,min=1,dive,required"`
	SSHOptions  map[string]string `yaml:"sshOptions" bson:"sshOptions"`
	Users       map[string]string `yaml:"users" bson:"users"`
	MaxWorkers  int               `yaml:"maxWorkers" bson:"maxWorkers" validate:"gte=0"`
	TaskTimeout string            `yaml:"taskTimeout" bson:"taskTimeout"`
	LogFile     string            `yaml:"logFile" bson:"logFile"`
	Kafka       *KafkaConfig      `yaml:"kafka,omitempty" bson:"kafka,omitempty"`
}

// KafkaConfig enables publishing finalized results to a broker.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" bson:"brokers" validate:"required,min=1"`
	Topic   string   `yaml:"topic" bson:"topic" validate:"required"`
}

// UserFor implements task.Lookup.
func (c *Config) UserFor(server string) string {
	return c.Users[server]
}

// OptionsFor implements task.Lookup.
func (c *Config) OptionsFor(server string) string {
	return c.SSHOptions[server]
}

// Timeout parses TaskTimeout; empty means no per-task limit.
func (c *Config) Timeout() (time.Duration, error) {
	if c.TaskTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TaskTimeout)
	if err != nil {
		return 0, fmt.Errorf("taskTimeout: %w", err)
	}
	return d, nil
}

// Validate checks structural constraints before any task is built.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if _, err := c.Timeout(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// Open selects a store for the given location: a mongodb:// URI picks the
// Mongo-backed store, anything else is a YAML file path.
func Open(location string) (configstore.ConfigStore, error) {
	if strings.HasPrefix(location, "mongodb://") || strings.HasPrefix(location, "mongodb+srv://") {
		return mongostore.New(location, mongoDatabase, mongoCollection, mongoDocumentID)
	}
	return filestore.New(location), nil
}

// Load reads and validates the configuration at location.
func Load(location string) (*Config, error) {
	store, err := Open(location)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := store.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrNotFound reports that no config file could be discovered.
var ErrNotFound = errors.New("no configuration file found")

// Discover returns the first existing config file: cwd first, then the user
// config directory.
func Discover() (string, error) {
	if p := FileName; fileExists(p) {
		return p, nil
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "fleetrun", FileName)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// DefaultPath is where WriteDefault places a fresh config.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "fleetrun", FileName), nil
}

// WriteDefault creates a commented starter config at path.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o600)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

const defaultConfig = `# fleetrun configuration
servers:
  - localhost

# Per-server overrides. Servers without an entry get an empty value.
users:
  localhost: ""
sshOptions:
  localhost: ""

# Maximum concurrently running tasks. 0 means unbounded.
maxWorkers: 0

# Per-task timeout, e.g. "30s". Empty means no limit.
taskTimeout: ""

# Report log file.
logFile: "fleetrun.log"
`
