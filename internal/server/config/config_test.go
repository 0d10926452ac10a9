package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.NotEmpty(t, c.DatabaseDSN)
	assert.NotEmpty(t, c.MasterKeySecret)
	assert.NotEmpty(t, c.MasterKeySalt)
	assert.Equal(t, "arkiva", c.S3Bucket)
	assert.Equal(t, 30, c.RetentionDays)
	assert.Equal(t, 24*time.Hour, c.SweepInterval)
	assert.Equal(t, 256, c.AuditQueueSize)
}

func TestParseJson_OverridesNonZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_dsn": "postgres://custom/arkiva",
		"s3_bucket": "custom-bucket",
		"retention_days": 7,
		"sweep_interval": "1h"
	}`), 0o600))
	withArgs(t, "-c", path)

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, "postgres://custom/arkiva", c.DatabaseDSN)
	assert.Equal(t, "custom-bucket", c.S3Bucket)
	assert.Equal(t, 7, c.RetentionDays)
	assert.Equal(t, time.Hour, c.SweepInterval)
	// untouched fields keep their defaults
	assert.Equal(t, "dev-master-secret", c.MasterKeySecret)
}

func TestParseJson_NoFileFlag(t *testing.T) {
	withArgs(t)

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, "arkiva", c.S3Bucket)
}

func TestParseJson_BadFilePanics(t *testing.T) {
	withArgs(t, "-c", filepath.Join(t.TempDir(), "missing.json"))

	var c Config
	c.LoadDefaults()
	assert.Panics(t, func() { parseJson(&c) })
}

func TestParseFlags(t *testing.T) {
	withArgs(t, "-d", "postgres://flag/arkiva", "-b", "flag-bucket", "-r", "14", "-i", "6")

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, "postgres://flag/arkiva", c.DatabaseDSN)
	assert.Equal(t, "flag-bucket", c.S3Bucket)
	assert.Equal(t, 14, c.RetentionDays)
	assert.Equal(t, 6*time.Hour, c.SweepInterval)
}
