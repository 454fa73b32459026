package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophmaster/internal/flagx"
	"github.com/dmitrijs2005/gophmaster/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Durations accept strings such as "15m" or integer nanoseconds. Pointer
// fields tell an explicit false or zero apart from an absent key.
type JsonConfig struct {
	EndpointAddrGRPC     string          `json:"endpoint_addr_grpc"`
	DatabaseDSN          string          `json:"database_dsn"`
	RedisAddr            string          `json:"redis_addr"`
	SecretKey            string          `json:"secret_key"`
	TokenIssuer          string          `json:"token_issuer"`
	TokenAudience        string          `json:"token_audience"`
	TokenLifetime        *timex.Duration `json:"token_lifetime"`
	CodeTTL              *timex.Duration `json:"code_ttl"`
	GuestLoginEnabled    *bool           `json:"guest_login_enabled"`
	GuestPrefix          *string         `json:"guest_prefix"`
	UsernameMinLength    int             `json:"username_min_length"`
	UsernameMaxLength    int             `json:"username_max_length"`
	PasswordMinLength    int             `json:"password_min_length"`
	EmailPattern         string          `json:"email_pattern"`
	EmailConfirmRequired *bool           `json:"email_confirm_required"`
	CensorFile           string          `json:"censor_file"`
	ResendAPIKey         string          `json:"resend_api_key"`
	MailFrom             string          `json:"mail_from"`
	LogLevel             string          `json:"log_level"`
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Keys missing from the file leave the current values alone. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setString(&config.TokenAudience, c.TokenAudience)
	setString(&config.EmailPattern, c.EmailPattern)
	setString(&config.CensorFile, c.CensorFile)
	setString(&config.ResendAPIKey, c.ResendAPIKey)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenLifetime != nil {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	if c.CodeTTL != nil {
		config.CodeTTL = c.CodeTTL.Duration
	}
	if c.GuestLoginEnabled != nil {
		config.GuestLoginEnabled = *c.GuestLoginEnabled
	}
	if c.GuestPrefix != nil {
		config.GuestPrefix = *c.GuestPrefix
	}
	if c.EmailConfirmRequired != nil {
		config.EmailConfirmRequired = *c.EmailConfirmRequired
	}
	if c.UsernameMinLength > 0 {
		config.UsernameMinLength = c.UsernameMinLength
	}
	if c.UsernameMaxLength > 0 {
		config.UsernameMaxLength = c.UsernameMaxLength
	}
	if c.PasswordMinLength > 0 {
		config.PasswordMinLength = c.PasswordMinLength
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
