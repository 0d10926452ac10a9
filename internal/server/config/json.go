package config

import (
	"encoding/json"
	"os"

	"github.com/Frijidia/Arkiva-sub000/internal/flagx"
	"github.com/Frijidia/Arkiva-sub000/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "24h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files; after unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN     string         `json:"database_dsn"`
	MasterKeySecret string         `json:"master_key_secret"`
	MasterKeySalt   string         `json:"master_key_salt"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	RetentionDays   int            `json:"retention_days"`
	SweepInterval   timex.Duration `json:"sweep_interval"`
	AuditQueueSize  int            `json:"audit_queue_size"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. A file that cannot be
// read or parsed panics, since running with half-applied config is worse than
// not starting.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDSN != "" {
		config.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.MasterKeySecret != "" {
		config.MasterKeySecret = jc.MasterKeySecret
	}
	if jc.MasterKeySalt != "" {
		config.MasterKeySalt = jc.MasterKeySalt
	}
	if jc.S3RootUser != "" {
		config.S3RootUser = jc.S3RootUser
	}
	if jc.S3RootPassword != "" {
		config.S3RootPassword = jc.S3RootPassword
	}
	if jc.S3Bucket != "" {
		config.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		config.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.RetentionDays != 0 {
		config.RetentionDays = jc.RetentionDays
	}
	if jc.SweepInterval.Duration != 0 {
		config.SweepInterval = jc.SweepInterval.Duration
	}
	if jc.AuditQueueSize != 0 {
		config.AuditQueueSize = jc.AuditQueueSize
	}
}
