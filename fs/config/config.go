// Package config loads the connector settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ThierryZhou/go-s3connector/fs"
	"github.com/ThierryZhou/go-s3connector/s3"
)

const (
	// DefaultPath is used when neither a flag nor S3CONNECTOR_CONFIG names a file.
	DefaultPath = "~/.s3connector.yaml"

	EnvConfig    = "S3CONNECTOR_CONFIG"
	EnvEndpoint  = "S3CONNECTOR_ENDPOINT"
	EnvRegion    = "S3CONNECTOR_REGION"
	EnvAccessKey = "S3CONNECTOR_ACCESS_KEY"
	EnvSecretKey = "S3CONNECTOR_SECRET_KEY"
	EnvLogLevel  = "S3CONNECTOR_LOG_LEVEL"
)

// Config holds the connector settings.
//
// YAML example:
//
//	endpoint: "http://127.0.0.1:9000"
//	region: "eu-central-1"
//	accessKey: "minio"
//	secretKey: "minio123"
//	pathStyle: true
//	maxAttempts: 3
//	timeout: "30s"
//	logLevel: "info"
//	csv:
//	  separator: ";"
//	  nullIdentifier: "#N/A"
//
// Empty credentials fall back to the default AWS credential chain.
type Config struct {
	Endpoint    string    `yaml:"endpoint,omitempty"`
	Region      string    `yaml:"region,omitempty"`
	AccessKey   string    `yaml:"accessKey,omitempty"`
	SecretKey   string    `yaml:"secretKey,omitempty"`
	Token       string    `yaml:"token,omitempty"`
	PathStyle   *bool     `yaml:"pathStyle,omitempty"`
	MaxAttempts int       `yaml:"maxAttempts,omitempty"`
	Timeout     string    `yaml:"timeout,omitempty"`
	LogLevel    string    `yaml:"logLevel,omitempty"`
	CSV         CSVConfig `yaml:"csv,omitempty"`
}

// CSVConfig sets the defaults for table uploads.
type CSVConfig struct {
	Separator      string `yaml:"separator,omitempty"`
	NullIdentifier string `yaml:"nullIdentifier,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Region:   s3.DefaultRegion,
		LogLevel: "info",
		CSV: CSVConfig{
			Separator:      string(s3.DefaultSeparator),
			NullIdentifier: s3.DefaultNullIdentifier,
		},
	}
}

// Path resolves the config file location: explicit path, then
// S3CONNECTOR_CONFIG, then DefaultPath.
func Path(explicit string) (string, error) {
	p := explicit
	if p == "" {
		p = os.Getenv(EnvConfig)
	}
	if p == "" {
		p = DefaultPath
	}
	return fs.ExpandPath(p)
}

// Load reads the file at path over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debugf("config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		c.Region = v
	}
	if v := os.Getenv(EnvAccessKey); v != "" {
		c.AccessKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the values that cannot be caught by the YAML decoder.
func (c *Config) Validate() error {
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("config: accessKey and secretKey must be set together")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config: maxAttempts must not be negative, got %d", c.MaxAttempts)
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("config: timeout: %w", err)
		}
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config: logLevel: %w", err)
		}
	}
	if c.CSV.Separator != "" {
		r, size := utf8.DecodeRuneInString(c.CSV.Separator)
		if size != len(c.CSV.Separator) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
			return fmt.Errorf("config: csv.separator must be a single character, got %q", c.CSV.Separator)
		}
	}
	return nil
}

// Option converts the configuration into client options.
func (c *Config) Option() *s3.Option {
	o := s3.DefaultOption()
	o.URL = c.Endpoint
	if c.Region != "" {
		o.Region = c.Region
	}
	o.AccessKey = c.AccessKey
	o.SecretKey = c.SecretKey
	o.Token = c.Token
	if c.PathStyle != nil {
		o.PathStyle = *c.PathStyle
	}
	if c.MaxAttempts > 0 {
		o.MaxAttempts = c.MaxAttempts
	}
	if d, err := time.ParseDuration(c.Timeout); err == nil {
		o.Timeout = d
	}
	return &o
}

// TableOption returns the CSV defaults for table uploads.
func (c *Config) TableOption() *s3.TableOption {
	o := &s3.TableOption{NullIdentifier: c.CSV.NullIdentifier}
	if c.CSV.Separator != "" {
		o.Separator, _ = utf8.DecodeRuneInString(c.CSV.Separator)
	}
	return o
}

// Save writes c to path, readable by the owner only since it holds secrets.
func (c *Config) Save(path string) error {
	if err := fs.EnsureParentDir(path); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	data = append([]byte("# s3connector configuration\n"), data...)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// String renders c with the secret key masked.
func (c *Config) String() string {
	masked := *c
	if masked.SecretKey != "" {
		masked.SecretKey = strings.Repeat("*", 8)
	}
	if masked.Token != "" {
		masked.Token = strings.Repeat("*", 8)
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
