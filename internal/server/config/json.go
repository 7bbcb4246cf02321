package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "15m"
// strings and integer nanoseconds; absent keys leave the current value alone.
type JsonConfig struct {
	EndpointAddrHTTP              *string         `json:"endpoint_addr_http"`
	DatabaseDSN                   *string         `json:"database_dsn"`
	SecretKey                     *string         `json:"secret_key"`
	TokenIssuer                   *string         `json:"token_issuer"`
	AccessTokenValidityDuration   *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration  *timex.Duration `json:"refresh_token_validity_duration"`
	PasswordResetValidityDuration *timex.Duration `json:"password_reset_validity_duration"`
	EncryptionKey                 *string         `json:"encryption_key"`
	EncryptionIV                  *string         `json:"encryption_iv"`
	GoogleClientID                *string         `json:"google_client_id"`
	FrontendBaseURL               *string         `json:"frontend_base_url"`
	PostmarkServerToken           *string         `json:"postmark_server_token"`
	PostmarkAccountToken          *string         `json:"postmark_account_token"`
	SenderEmail                   *string         `json:"sender_email"`
	SupportEmail                  *string         `json:"support_email"`
	LogLevel                      *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config (or $CONFIG).
// It panics if the file cannot be read or is not valid JSON.
func parseJson(config *Config) {
	path := flagx.ConfigFilePath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.PasswordResetValidityDuration, c.PasswordResetValidityDuration)
	setString(&config.EncryptionKey, c.EncryptionKey)
	setString(&config.EncryptionIV, c.EncryptionIV)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.FrontendBaseURL, c.FrontendBaseURL)
	setString(&config.PostmarkServerToken, c.PostmarkServerToken)
	setString(&config.PostmarkAccountToken, c.PostmarkAccountToken)
	setString(&config.SenderEmail, c.SenderEmail)
	setString(&config.SupportEmail, c.SupportEmail)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
