package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pathwayfr/pathway/internal/flagx"
)

// defaultEnvFile is loaded when present and no -envfile flag is given.
const defaultEnvFile = ".env"

// parseEnv overlays Config with environment variables. A dotenv file named
// by -envfile (or ./.env when it exists) is loaded first; variables already
// set in the process environment take precedence over the file.
//
// Recognised variables:
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_DSN, MIGRATE_ON_START, SECRET_KEY,
//	JWT_ACCESS_TOKEN_EXPIRES, JWT_REFRESH_TOKEN_EXPIRES,
//	VERIFICATION_TOKEN_EXPIRES, RESET_TOKEN_EXPIRES,
//	REVOCATION_BACKEND, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB,
//	MAIL_SERVER, MAIL_PORT, MAIL_USERNAME, MAIL_PASSWORD, MAIL_DEFAULT_SENDER,
//	BASE_URL, FRONTEND_URL, LOG_LEVEL
//
// Durations use time.ParseDuration syntax. Malformed values panic.
func parseEnv(config *Config) {
	loadEnvFile()

	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envBool(&config.MigrateOnStart, "MIGRATE_ON_START")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "JWT_ACCESS_TOKEN_EXPIRES")
	envDuration(&config.RefreshTokenValidityDuration, "JWT_REFRESH_TOKEN_EXPIRES")
	envDuration(&config.VerificationTokenValidityDuration, "VERIFICATION_TOKEN_EXPIRES")
	envDuration(&config.ResetTokenValidityDuration, "RESET_TOKEN_EXPIRES")
	envString(&config.RevocationBackend, "REVOCATION_BACKEND")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envInt(&config.RedisDB, "REDIS_DB")
	envString(&config.SMTPHost, "MAIL_SERVER")
	envInt(&config.SMTPPort, "MAIL_PORT")
	envString(&config.SMTPUsername, "MAIL_USERNAME")
	envString(&config.SMTPPassword, "MAIL_PASSWORD")
	envString(&config.MailSender, "MAIL_DEFAULT_SENDER")
	envString(&config.BaseURL, "BASE_URL")
	envString(&config.FrontendURL, "FRONTEND_URL")
	envString(&config.LogLevel, "LOG_LEVEL")
}

func loadEnvFile() {
	path := flagx.EnvFileFlags()
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		panic(err)
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
