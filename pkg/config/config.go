// Package config loads the YAML settings shared by the ctl commands.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/anonymize"
	"github.com/jpfielding/dicom.go/pkg/logging"
	"github.com/jpfielding/dicom.go/pkg/net/client"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
	"github.com/jpfielding/dicom.go/pkg/net/server"
)

// Config is the top level configuration file.
type Config struct {
	Log       LogConfig          `yaml:"log"`
	Codec     CodecConfig        `yaml:"codec"`
	Server    ServerConfig       `yaml:"server"`
	Client    ClientConfig       `yaml:"client"`
	Search    SearchConfig       `yaml:"search"`
	Anonymize anonymize.Settings `yaml:"anonymize"`
}

type LogConfig struct {
	Level string             `yaml:"level"` // DEBUG, INFO, WARN or ERROR
	JSON  bool               `yaml:"json"`
	File  logging.FileConfig `yaml:"file"`
}

// CodecConfig tunes tolerant parsing.
type CodecConfig struct {
	MaxCorrections int `yaml:"max_corrections"`
}

type ServerConfig struct {
	AETitle        string `yaml:"ae_title"`
	Address        string `yaml:"address"`
	StoreDir       string `yaml:"store_dir"`
	MaxConnections int    `yaml:"max_connections"`
	MaxPDULength   uint32 `yaml:"max_pdu_length"`
	IdleTimeoutMs  int    `yaml:"idle_timeout_ms"`
	Pcap           string `yaml:"pcap"`
}

type ClientConfig struct {
	CallingAE        string `yaml:"calling_ae"`
	CalledAE         string `yaml:"called_ae"`
	Address          string `yaml:"address"`
	MaxPDULength     uint32 `yaml:"max_pdu_length"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

type SearchConfig struct {
	OnePerDirectory    bool `yaml:"one_per_directory"`
	ProgressIntervalMs int  `yaml:"progress_interval_ms"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "INFO",
			File:  logging.FileConfig{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		},
		Codec: CodecConfig{MaxCorrections: dicom.DefaultMaxCorrections},
		Server: ServerConfig{
			AETitle:       "GO_DICOM_SCP",
			Address:       ":11112",
			MaxPDULength:  pdu.DefaultMaxPDULength,
			IdleTimeoutMs: 60_000,
		},
		Client: ClientConfig{
			CallingAE:        "GO_DICOM_SCU",
			CalledAE:         "ANY-SCP",
			Address:          "127.0.0.1:11112",
			MaxPDULength:     pdu.DefaultMaxPDULength,
			ConnectTimeoutMs: 30_000,
		},
		Search:    SearchConfig{ProgressIntervalMs: 1000},
		Anonymize: anonymize.Default(),
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Write saves cfg as YAML.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level must be DEBUG, INFO, WARN or ERROR, got %q", c.Log.Level))
	}
	if c.Codec.MaxCorrections < 0 {
		errs = append(errs, errors.New("codec.max_corrections must be >= 0"))
	}
	if c.Server.AETitle == "" || len(c.Server.AETitle) > 16 {
		errs = append(errs, fmt.Errorf("server.ae_title must be 1 to 16 characters, got %q", c.Server.AETitle))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must be >= 0"))
	}
	if c.Server.IdleTimeoutMs < 0 {
		errs = append(errs, errors.New("server.idle_timeout_ms must be >= 0"))
	}
	if len(c.Client.CallingAE) > 16 || len(c.Client.CalledAE) > 16 {
		errs = append(errs, errors.New("client AE titles must be at most 16 characters"))
	}
	if c.Client.ConnectTimeoutMs < 0 {
		errs = append(errs, errors.New("client.connect_timeout_ms must be >= 0"))
	}
	if c.Search.ProgressIntervalMs < 0 {
		errs = append(errs, errors.New("search.progress_interval_ms must be >= 0"))
	}
	if err := c.Anonymize.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("anonymize: %w", err))
	}
	return errors.Join(errs...)
}

// ReaderOptions applies the codec section.
func (c *Config) ReaderOptions(logger *slog.Logger) []dicom.ReaderOption {
	return []dicom.ReaderOption{dicom.WithLogger(logger), dicom.WithMaxCorrections(c.Codec.MaxCorrections)}
}

// ServerOptions applies the server section.
func (c *Config) ServerOptions(logger *slog.Logger) []server.Option {
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMaxConnections(c.Server.MaxConnections),
		server.WithIdleTimeout(time.Duration(c.Server.IdleTimeoutMs) * time.Millisecond),
	}
	if c.Server.MaxPDULength > 0 {
		opts = append(opts, server.WithMaxPDULength(c.Server.MaxPDULength))
	}
	if c.Server.StoreDir != "" {
		opts = append(opts, server.WithStoreDir(c.Server.StoreDir))
	}
	return opts
}

// ClientConfig applies the client section.
func (c *Config) ClientConfig(logger *slog.Logger) client.Config {
	return client.Config{
		CallingAE:      c.Client.CallingAE,
		CalledAE:       c.Client.CalledAE,
		MaxPDULength:   c.Client.MaxPDULength,
		ConnectTimeout: time.Duration(c.Client.ConnectTimeoutMs) * time.Millisecond,
		Logger:         logger,
	}
}

// ProgressInterval is the search progress throttle.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Search.ProgressIntervalMs) * time.Millisecond
}
