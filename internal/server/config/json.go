package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/contentkeeper/internal/flagx"
	"github.com/dmitrijs2005/contentkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted.
// Values are copied into Config after unmarshalling; zero values in the
// file leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP  string         `json:"endpoint_addr_http"`
	DatabaseDSN       string         `json:"database_dsn"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3PublicBaseURL   string         `json:"s3_public_base_url"`
	PlaceholderURL    string         `json:"placeholder_url"`
	RequestTimeout    timex.Duration `json:"request_timeout"`
	CleanupTimeout    timex.Duration `json:"cleanup_timeout"`
	MaxUploadSize     int64          `json:"max_upload_size"`
	UploadConcurrency int            `json:"upload_concurrency"`
	LogLevel          string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag. Without the flag nothing is loaded. An unreadable
// or malformed file panics, as startup cannot continue.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.PlaceholderURL, c.PlaceholderURL)
	setString(&config.LogLevel, c.LogLevel)

	if c.RequestTimeout.Duration > 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.CleanupTimeout.Duration > 0 {
		config.CleanupTimeout = c.CleanupTimeout.Duration
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.UploadConcurrency > 0 {
		config.UploadConcurrency = c.UploadConcurrency
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
