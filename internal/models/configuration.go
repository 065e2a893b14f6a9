package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"otplink/internal/otp"
)

const (
	DefaultOTPMinLength = 4
	DefaultOTPMaxLength = 8
	MaxOTPLength        = 20
	DefaultSMTPPort     = 587
)

type EmailSettings struct {
	SMTPHost  string `json:"smtpHost"`
	SMTPPort  int    `json:"smtpPort"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Recipient string `json:"recipient"`
}

// Enabled reports whether email forwarding is switched on.
func (e EmailSettings) Enabled() bool {
	return strings.TrimSpace(e.Recipient) != ""
}

// Configuration is the user-facing settings document.
type Configuration struct {
	Keywords           []string      `json:"keywords"`
	OTPMinLength       int           `json:"otpMinLength"`
	OTPMaxLength       int           `json:"otpMaxLength"`
	WebhookURL         string        `json:"webhookUrl"`
	SMSListenerEnabled bool          `json:"smsListenerEnabled"`
	EmailSettings      EmailSettings `json:"emailSettings"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		Keywords:           otp.DefaultKeywords(),
		OTPMinLength:       DefaultOTPMinLength,
		OTPMaxLength:       DefaultOTPMaxLength,
		WebhookURL:         "",
		SMSListenerEnabled: true,
		EmailSettings: EmailSettings{
			SMTPPort: DefaultSMTPPort,
		},
	}
}

// UnmarshalJSON fills fields missing from older stored documents:
// smsListenerEnabled defaults to true, lengths to 4/8, smtpPort to 587.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	type plain Configuration
	raw := struct {
		plain
		OTPMinLength       *int  `json:"otpMinLength"`
		OTPMaxLength       *int  `json:"otpMaxLength"`
		SMSListenerEnabled *bool `json:"smsListenerEnabled"`
	}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Configuration(raw.plain)
	c.OTPMinLength = DefaultOTPMinLength
	if raw.OTPMinLength != nil {
		c.OTPMinLength = *raw.OTPMinLength
	}
	c.OTPMaxLength = DefaultOTPMaxLength
	if raw.OTPMaxLength != nil {
		c.OTPMaxLength = *raw.OTPMaxLength
	}
	c.SMSListenerEnabled = true
	if raw.SMSListenerEnabled != nil {
		c.SMSListenerEnabled = *raw.SMSListenerEnabled
	}
	if c.EmailSettings.SMTPPort == 0 {
		c.EmailSettings.SMTPPort = DefaultSMTPPort
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return nil
}

// Normalize cleans keywords and trims free-text fields in place.
func (c *Configuration) Normalize() {
	c.Keywords = otp.NormalizeKeywords(c.Keywords)
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.EmailSettings.SMTPHost = strings.TrimSpace(c.EmailSettings.SMTPHost)
	c.EmailSettings.Recipient = strings.TrimSpace(c.EmailSettings.Recipient)
	if c.EmailSettings.SMTPPort == 0 {
		c.EmailSettings.SMTPPort = DefaultSMTPPort
	}
}

// Validate checks the user-editable constraints.
func (c *Configuration) Validate() error {
	if c.OTPMinLength < 1 {
		return fmt.Errorf("otpMinLength must be at least 1")
	}
	if c.OTPMaxLength > MaxOTPLength {
		return fmt.Errorf("otpMaxLength must be at most %d", MaxOTPLength)
	}
	if c.OTPMinLength > c.OTPMaxLength {
		return fmt.Errorf("otpMinLength %d exceeds otpMaxLength %d", c.OTPMinLength, c.OTPMaxLength)
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhookUrl must be an absolute http(s) URL")
		}
	}
	if c.EmailSettings.Enabled() && c.EmailSettings.SMTPHost == "" {
		return fmt.Errorf("SMTP host is required when email forwarding is enabled")
	}
	if p := c.EmailSettings.SMTPPort; p < 1 || p > 65535 {
		return fmt.Errorf("smtpPort %d out of range", p)
	}
	return nil
}

// Clone returns a deep copy
func (c *Configuration) Clone() *Configuration {
	out := *c
	out.Keywords = append([]string(nil), c.Keywords...)
	return &out
}
