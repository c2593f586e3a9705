package main

import (
	"time"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

const (
	defaultBindHost       = "0.0.0.0"
	defaultAPIPort        = model.DefaultAPIPort
	defaultQueryTimeout   = 30 * time.Second
	defaultEventsLimit    = 10
	defaultEventsMaxLimit = 100
	defaultRetentionDays  = 30 // 0 = disabled
	defaultBackupInterval = 6 * time.Hour
	defaultBackupKeepLast = 24
)

// appConfig is internal runtime configuration for the webhook server.
type appConfig struct {
	APIPort            int           `mapstructure:"api-port" yaml:"api-port"`
	APIAddr            string        `mapstructure:"api-addr" yaml:"api-addr"`
	DBPath             string        `mapstructure:"db-path" yaml:"db-path"`
	WebhookSecret      string        `mapstructure:"webhook-secret" yaml:"webhook-secret"`
	EventsDefaultLimit int           `mapstructure:"events-default-limit" yaml:"events-default-limit"`
	EventsMaxLimit     int           `mapstructure:"events-max-limit" yaml:"events-max-limit"`
	RetentionDays      int           `mapstructure:"retention-days" yaml:"retention-days"`
	QueryTimeout       time.Duration `mapstructure:"query-timeout" yaml:"query-timeout"`
	CORSOrigins        []string      `mapstructure:"cors-origins" yaml:"cors-origins"`
	MetricsEnabled     bool          `mapstructure:"metrics-enabled" yaml:"metrics-enabled"`
	LogPath            string        `mapstructure:"log-path" yaml:"log-path"`

	BackupEnabled    bool          `mapstructure:"backup-enabled" yaml:"backup-enabled"`
	BackupInterval   time.Duration `mapstructure:"backup-interval" yaml:"backup-interval"`
	BackupLocalDir   string        `mapstructure:"backup-local-dir" yaml:"backup-local-dir"`
	BackupKeepLast   int           `mapstructure:"backup-keep-last" yaml:"backup-keep-last"`
	BackupBucketURL  string        `mapstructure:"backup-bucket-url" yaml:"backup-bucket-url"`
	BackupS3Endpoint string        `mapstructure:"backup-s3-endpoint" yaml:"backup-s3-endpoint"`
	BackupS3Region   string        `mapstructure:"backup-s3-region" yaml:"backup-s3-region"`

	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}
