// Package config loads the facility's settings from the environment.
package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultLogLevel    = "INFO"
	DefaultServiceName = "logging-service"
	DefaultLogDir      = "logs"
	DefaultMaxFileSize = 10485760 // 10 MiB
	DefaultBackupCount = 5
	DefaultMetricsPort = 8080
	DefaultAWSRegion   = "us-west-2"
)

var levelNames = []interface{}{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// Config carries every deployment knob the facility reads. MetricsPort and
// AWSRegion are surfaced for collaborators (metrics endpoint, log shipper);
// the logging core itself does not open network connections.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	ServiceName string `mapstructure:"service_name"`
	LogDir      string `mapstructure:"log_dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
	BackupCount int    `mapstructure:"backup_count"`
	MetricsPort int    `mapstructure:"metrics_port"`
	AWSRegion   string `mapstructure:"aws_region"`
}

// Load reads LOG_LEVEL, SERVICE_NAME, LOG_DIR, MAX_FILE_SIZE, BACKUP_COUNT,
// METRICS_PORT and AWS_REGION from the environment, falling back to the
// defaults above. A malformed configuration is fatal to initialization.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("service_name", DefaultServiceName)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("max_file_size", DefaultMaxFileSize)
	v.SetDefault("backup_count", DefaultBackupCount)
	v.SetDefault("metrics_port", DefaultMetricsPort)
	v.SetDefault("aws_region", DefaultAWSRegion)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In(levelNames...),
		),
		validation.Field(&c.ServiceName,
			validation.Required,
		),
		validation.Field(&c.LogDir,
			validation.Required,
		),
		validation.Field(&c.MaxFileSize,
			validation.Required,
			validation.Min(int64(1)),
		),
		validation.Field(&c.BackupCount,
			validation.Min(0),
		),
		validation.Field(&c.MetricsPort,
			validation.Min(1),
			validation.Max(65535),
		),
		validation.Field(&c.AWSRegion,
			validation.Required,
		),
	)
}
