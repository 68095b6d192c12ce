package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, 24*time.Hour, cfg.TempTTL)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, int64(10*1024*1024), cfg.Policy.MaxBytes)
	assert.Equal(t, CodecStd, cfg.Codec)
	assert.Equal(t, StorageLocal, cfg.Storage)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero quality", func(c *Config) { c.DefaultQuality = 0 }, false},
		{"quality above range", func(c *Config) { c.DefaultQuality = 101 }, false},
		{"empty temp dir", func(c *Config) { c.TempDir = "" }, false},
		{"negative ttl", func(c *Config) { c.TempTTL = -time.Hour }, false},
		{"minio without endpoint", func(c *Config) { c.Storage = StorageMinio }, false},
		{"minio with endpoint", func(c *Config) {
			c.Storage = StorageMinio
			c.Minio.Endpoint = "localhost:9000"
		}, true},
		{"policy quality out of range", func(c *Config) { c.Policy.Quality = 200 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
