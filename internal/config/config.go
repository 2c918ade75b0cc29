// Package config loads the service configuration from environment
// variables.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cenderhq/cender/pkg/blobstore"
	"github.com/cenderhq/cender/pkg/db"
	"github.com/cenderhq/cender/pkg/gmail"
	"github.com/cenderhq/cender/pkg/logger"
	"github.com/cenderhq/cender/pkg/redis"
	"github.com/cenderhq/cender/pkg/resendmail"
)

// ErrInvalidConfig wraps env parsing failures.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full service configuration.
type Config struct {
	HTTP     HTTP
	Blob     Blob
	Dispatch Dispatch

	DB     db.Config
	Redis  redis.Config
	Gmail  gmail.Config
	Resend resendmail.Config
	Log    logger.Config
	Sentry logger.SentryConfig
}

// HTTP holds server settings.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	// Dispatch responses stream for the run's whole duration, so the write
	// timeout must cover the slowest realistic run.
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Blob selects and configures the blob storage backend.
type Blob struct {
	// Driver is "local" or "s3".
	Driver string `env:"BLOBSTORE_DRIVER" envDefault:"local"`
	Local  blobstore.LocalConfig
	S3     blobstore.S3Config
}

// Dispatch holds run-level tunables.
type Dispatch struct {
	// RunLockTTL bounds how long a crashed process blocks the next run for
	// the same account.
	RunLockTTL time.Duration `env:"DISPATCH_RUN_LOCK_TTL" envDefault:"1h"`

	// DryRunDelay paces dry-run previews.
	DryRunDelay time.Duration `env:"DISPATCH_DRY_RUN_DELAY" envDefault:"100ms"`

	// LogRetention is how long delivery log rows are kept before the
	// nightly sweep removes them. Zero disables the sweep.
	LogRetention time.Duration `env:"DISPATCH_LOG_RETENTION" envDefault:"8760h"`

	// RetentionSchedule is the cron expression of the sweep.
	RetentionSchedule string `env:"DISPATCH_RETENTION_SCHEDULE" envDefault:"0 4 * * *"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}
