package config

import (
	"encoding/json"
	"os"

	"github.com/clipstream/clipstream/internal/flagx"
	"github.com/clipstream/clipstream/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Duration fields use
// timex.Duration so both "15m" strings and integer nanoseconds parse. It is an
// intermediate DTO; values are copied into the runtime Config afterwards.
type JsonConfig struct {
	EndpointAddr                 *string         `json:"endpoint_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	S3AccessKey                  *string         `json:"s3_access_key"`
	S3SecretKey                  *string         `json:"s3_secret_key"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
	UploadTimeout                *timex.Duration `json:"upload_timeout"`
	CORSOrigin                   *string         `json:"cors_origin"`
	SecureCookies                *bool           `json:"secure_cookies"`
}

// parseJson loads configuration from the JSON file named by the -c/-config
// flag into the provided Config. Absent fields keep their current values.
// If no flag is given, nothing is loaded. An unreadable or invalid file panics:
// a half-applied config is worse than a crash at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.AccessTokenSecret != nil {
		config.AccessTokenSecret = *c.AccessTokenSecret
	}
	if c.RefreshTokenSecret != nil {
		config.RefreshTokenSecret = *c.RefreshTokenSecret
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.S3AccessKey != nil {
		config.S3AccessKey = *c.S3AccessKey
	}
	if c.S3SecretKey != nil {
		config.S3SecretKey = *c.S3SecretKey
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
	if c.S3PublicBaseURL != nil {
		config.S3PublicBaseURL = *c.S3PublicBaseURL
	}
	if c.UploadTimeout != nil {
		config.UploadTimeout = c.UploadTimeout.Duration
	}
	if c.CORSOrigin != nil {
		config.CORSOrigin = *c.CORSOrigin
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
}
