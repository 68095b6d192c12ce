package config

import (
	"errors"
	"time"
)

// CodecBackend selects the image codec implementation.
type CodecBackend string

const (
	CodecStd  CodecBackend = "std"
	CodecVips CodecBackend = "vips"
)

// StorageBackend selects the permanent storage adapter promoted assets go to.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageMinio StorageBackend = "minio"
)

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Default() and override what they need.
type Config struct {
	// Worker pool controls for async intake.
	WorkerCount int           `mapstructure:"workerCount"` // default: runtime.NumCPU()
	QueueSize   int           `mapstructure:"queueSize"`   // max queued jobs; default: 256
	JobTimeout  time.Duration `mapstructure:"jobTimeout"`

	// Codec backend.
	Codec          CodecBackend `mapstructure:"codec"`
	DefaultQuality int          `mapstructure:"defaultQuality"` // 1-100; default 85

	// Temp (scratch) storage.
	TempDir       string        `mapstructure:"tempDir"`
	TempTTL       time.Duration `mapstructure:"tempTTL"`       // default 24h
	SweepInterval time.Duration `mapstructure:"sweepInterval"` // default 1h

	// Permanent storage.
	Storage       StorageBackend `mapstructure:"storage"`
	PermanentDir  string         `mapstructure:"permanentDir"`
	PublicBaseURL string         `mapstructure:"publicBaseURL"`
	Minio         MinioConfig    `mapstructure:"minio"`

	// Upload policy defaults applied when a caller leaves fields zero.
	Policy PolicyDefaults `mapstructure:"policy"`

	// Logging.
	LogLevel string `mapstructure:"logLevel"` // "debug", "info", "warn", "error"
}

// MinioConfig configures the S3-compatible permanent store.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyID"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"useSSL"`
}

// PolicyDefaults seeds per-call upload policies.
type PolicyDefaults struct {
	MaxBytes          int64 `mapstructure:"maxBytes"`
	MaxWidth          int   `mapstructure:"maxWidth"`
	MaxHeight         int   `mapstructure:"maxHeight"`
	Quality           int   `mapstructure:"quality"`
	GenerateThumbnail bool  `mapstructure:"generateThumbnail"`
	ThumbnailWidth    int   `mapstructure:"thumbnailWidth"`
	ThumbnailHeight   int   `mapstructure:"thumbnailHeight"`
	Compress          bool  `mapstructure:"compress"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		JobTimeout:     30 * time.Second,
		Codec:          CodecStd,
		DefaultQuality: 85,
		TempDir:        "temp",
		TempTTL:        24 * time.Hour,
		SweepInterval:  time.Hour,
		Storage:        StorageLocal,
		PermanentDir:   "uploads",
		Policy: PolicyDefaults{
			MaxBytes:          10 * 1024 * 1024,
			MaxWidth:          4096,
			MaxHeight:         4096,
			Quality:           85,
			GenerateThumbnail: true,
			ThumbnailWidth:    200,
			ThumbnailHeight:   200,
			Compress:          true,
		},
		LogLevel: "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.TempDir == "" {
		return errors.New("config: TempDir must not be empty")
	}
	if c.TempTTL < 0 || c.SweepInterval < 0 {
		return errors.New("config: TempTTL and SweepInterval must not be negative")
	}
	if c.Storage == StorageMinio && c.Minio.Endpoint == "" {
		return errors.New("config: Minio.Endpoint is required for the minio storage backend")
	}
	if c.Policy.Quality < 0 || c.Policy.Quality > 100 {
		return errors.New("config: Policy.Quality must be between 0 and 100")
	}
	return nil
}
