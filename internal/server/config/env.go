package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config values from environment variables. A .env file in
// the working directory (or the path in ENV_FILE) is loaded first if present;
// real environment variables win over the file.
func parseEnv(config *Config) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	setString(&config.EndpointAddr, "ADDRESS")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
	setString(&config.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_EXPIRY")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_EXPIRY")
	setInt(&config.BcryptCost, "BCRYPT_COST")
	setString(&config.S3AccessKey, "S3_ACCESS_KEY")
	setString(&config.S3SecretKey, "S3_SECRET_KEY")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.S3PublicBaseURL, "S3_PUBLIC_BASE_URL")
	setDuration(&config.UploadTimeout, "UPLOAD_TIMEOUT")
	setString(&config.CORSOrigin, "CORS_ORIGIN")
	setBool(&config.SecureCookies, "SECURE_COOKIES")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
