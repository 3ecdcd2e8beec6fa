// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/addityasingh/glaceon/pkg/network"
	"github.com/addityasingh/glaceon/pkg/pipeline"
	"github.com/addityasingh/glaceon/pkg/service"
	"github.com/addityasingh/glaceon/pkg/watcher"
	"github.com/sirupsen/logrus"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Gateway GatewayConfig `yaml:"gateway"`
	Monitor MonitorConfig `yaml:"monitor"`
	Network NetworkConfig `yaml:"network"`
	State   StateConfig   `yaml:"state"`
	Logging LoggingConfig `yaml:"logging"`
	Status  StatusConfig  `yaml:"status"`
	Admin   AdminConfig   `yaml:"admin"`
}

type APIConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type GatewayConfig struct {
	Backend string    `yaml:"backend"` // "http", "s3", "gcs"
	S3      S3Config  `yaml:"s3"`
	GCS     GCSConfig `yaml:"gcs"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type MonitorConfig struct {
	Mode          string        `yaml:"mode"`         // "auto", "poll", "fsnotify"
	ScanSchedule  string        `yaml:"scanSchedule"` // e.g. "@every 5s"
	SettleDelay   time.Duration `yaml:"settleDelay"`
	MaxInFlight   int           `yaml:"maxInFlight"`
	AwaitInFlight bool          `yaml:"awaitInFlight"`
	StopTimeout   time.Duration `yaml:"stopTimeout"`
}

type NetworkConfig struct {
	Mode string `yaml:"mode"` // "auto", "wifi", "metered"
}

type StateConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "info", "debug", etc.
	Format string `yaml:"format"` // "json", "text"
}

type StatusConfig struct {
	Port int `yaml:"port"` // 0 disables the status server
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".glaceon"
	}
	return filepath.Join(home, ".config", "glaceon")
}

// DefaultPath is where the CLI looks for the config file.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: gateway.DefaultTimeout,
		},
		Gateway: GatewayConfig{Backend: gateway.BackendHTTP},
		Monitor: MonitorConfig{
			Mode:         watcher.ModeAuto,
			ScanSchedule: "@every 5s",
			SettleDelay:  pipeline.DefaultSettleDelay,
			MaxInFlight:  service.DefaultMaxInFlight,
			StopTimeout:  service.DefaultStopTimeout,
		},
		Network: NetworkConfig{Mode: network.ModeAuto},
		State:   StateConfig{Path: filepath.Join(Dir(), "state.db")},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Admin:   AdminConfig{Port: 9401},
	}
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Gateway.Backend {
	case gateway.BackendHTTP:
		if c.API.BaseURL == "" {
			return errors.New("api.baseURL is required for the http backend")
		}
	case gateway.BackendS3:
		if c.Gateway.S3.Bucket == "" {
			return errors.New("gateway.s3.bucket is required for the s3 backend")
		}
	case gateway.BackendGCS:
		if c.Gateway.GCS.Bucket == "" {
			return errors.New("gateway.gcs.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown gateway backend %q", c.Gateway.Backend)
	}

	switch c.Monitor.Mode {
	case watcher.ModeAuto, watcher.ModePoll, watcher.ModeFSNotify:
	default:
		return fmt.Errorf("unknown monitor mode %q", c.Monitor.Mode)
	}
	if _, err := watcher.ParseSchedule(c.Monitor.ScanSchedule); err != nil {
		return fmt.Errorf("parsing monitor.scanSchedule: %w", err)
	}
	if c.Monitor.SettleDelay <= 0 {
		return errors.New("monitor.settleDelay must be positive")
	}
	if c.Monitor.MaxInFlight <= 0 {
		return errors.New("monitor.maxInFlight must be positive")
	}
	if c.Monitor.StopTimeout <= 0 {
		return errors.New("monitor.stopTimeout must be positive")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	switch c.Network.Mode {
	case network.ModeAuto, network.ModeWifi, network.ModeMetered:
	default:
		return fmt.Errorf("unknown network mode %q", c.Network.Mode)
	}

	if c.State.Path == "" {
		return errors.New("state.path is required")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("parsing logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}

	if err := validPort("status.port", c.Status.Port); err != nil {
		return err
	}
	// status.port 0 disables the status server; the admin channel always
	// binds a fixed port so ctl can find it.
	if c.Admin.Port == 0 {
		return errors.New("admin.port is required")
	}
	return validPort("admin.port", c.Admin.Port)
}

// S3 converts the s3 section into the gateway's form.
func (c *Config) S3() gateway.S3Config {
	return gateway.S3Config{
		Bucket:       c.Gateway.S3.Bucket,
		Prefix:       c.Gateway.S3.Prefix,
		Region:       c.Gateway.S3.Region,
		Endpoint:     c.Gateway.S3.Endpoint,
		AccessKey:    c.Gateway.S3.AccessKey,
		SecretKey:    c.Gateway.S3.SecretKey,
		UsePathStyle: c.Gateway.S3.UsePathStyle,
	}
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", name, port)
	}
	return nil
}
