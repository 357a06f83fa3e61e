package config

import (
	"encoding/json"
	"os"

	"github.com/pathwayfr/pathway/internal/flagx"
	"github.com/pathwayfr/pathway/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, which accepts both strings such as
// "15m" and integer nanoseconds. Pointer fields distinguish "absent" from
// an explicit zero value.
type JsonConfig struct {
	EndpointAddrHTTP                  string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                  string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                       string         `json:"database_dsn"`
	MigrateOnStart                    *bool          `json:"migrate_on_start"`
	SecretKey                         string         `json:"secret_key"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`
	ResetTokenValidityDuration        timex.Duration `json:"reset_token_validity_duration"`
	RevocationBackend                 string         `json:"revocation_backend"`
	RedisAddr                         string         `json:"redis_addr"`
	RedisPassword                     string         `json:"redis_password"`
	RedisDB                           *int           `json:"redis_db"`
	SMTPHost                          string         `json:"smtp_host"`
	SMTPPort                          int            `json:"smtp_port"`
	SMTPUsername                      string         `json:"smtp_username"`
	SMTPPassword                      string         `json:"smtp_password"`
	MailSender                        string         `json:"mail_sender"`
	BaseURL                           string         `json:"base_url"`
	FrontendURL                       string         `json:"frontend_url"`
	LogLevel                          string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set nothing is loaded. Only keys present in the file override
// the current values.
//
// If the file cannot be read or contains invalid JSON, the function panics.
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

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.MigrateOnStart != nil {
		config.MigrateOnStart = *c.MigrateOnStart
	}
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.VerificationTokenValidityDuration.Duration > 0 {
		config.VerificationTokenValidityDuration = c.VerificationTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration > 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	setString(&config.RevocationBackend, c.RevocationBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailSender, c.MailSender)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
