// Package config loads settings from config.yaml and MAILFINDER_* environment
// variables and builds the process logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the root configuration.
type Config struct {
	MailTester MailTesterConfig `yaml:"mailtester" mapstructure:"mailtester"`
	Finder     FinderConfig     `yaml:"finder" mapstructure:"finder"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// MailTesterConfig configures the verification service.
type MailTesterConfig struct {
	Key     string        `yaml:"key" mapstructure:"key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FinderConfig configures the discovery engine.
type FinderConfig struct {
	ProbeDelay time.Duration `yaml:"probe_delay" mapstructure:"probe_delay"`
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	RequestDelay   time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	Input          string        `yaml:"input" mapstructure:"input"`
	Output         string        `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the discovery server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAILFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("mailtester.key", "")
	v.SetDefault("mailtester.base_url", "https://happy.mailtester.ninja/ninja")
	v.SetDefault("mailtester.timeout", "10s")
	v.SetDefault("finder.probe_delay", "900ms")
	v.SetDefault("batch.workers", 5)
	v.SetDefault("batch.request_delay", "500ms")
	v.SetDefault("batch.request_timeout", "60s")
	v.SetDefault("batch.rate_limit_rps", 0)
	v.SetDefault("batch.max_retries", 0)
	v.SetDefault("batch.endpoint", "http://localhost:8080/find_email")
	v.SetDefault("batch.input", "")
	v.SetDefault("batch.output", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Modes: "serve", "find",
// "batch" (network discovery) and "batch-local" (in-process discovery).
func (c *Config) Validate(mode string) error {
	var problems []string
	needKey := mode == "serve" || mode == "find" || mode == "batch-local"
	if needKey && strings.TrimSpace(c.MailTester.Key) == "" {
		problems = append(problems, "mailtester.key is required")
	}
	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "batch", "batch-local":
		if strings.TrimSpace(c.Batch.Input) == "" {
			problems = append(problems, "batch.input is required")
		}
		if strings.TrimSpace(c.Batch.Output) == "" {
			problems = append(problems, "batch.output is required")
		}
		if c.Batch.Workers < 0 {
			problems = append(problems, "batch.workers must not be negative")
		}
		if c.Batch.MaxRetries < 0 {
			problems = append(problems, "batch.max_retries must not be negative")
		}
		if mode == "batch" && strings.TrimSpace(c.Batch.Endpoint) == "" {
			problems = append(problems, "batch.endpoint is required")
		}
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
