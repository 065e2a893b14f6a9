package models

import (
	"encoding/json"
	"fmt"
	"time"

	"otplink/internal/timeutil"
)

// Where an OTP record came from
const (
	SourceSMS     = "sms"
	SourceEmail   = "email"
	SourceWebhook = "webhook"
	SourceManual  = "manual"
)

// How an OTP record was forwarded
const (
	MethodWebhook = "webhook"
	MethodEmail   = "email"
	MethodAPI     = "api"
)

// OTPRecord is one detected code. ForwardingMethod is nil until Forwarded
// becomes true.
type OTPRecord struct {
	ID               string    `json:"id"`
	OTP              string    `json:"otp"`
	Source           string    `json:"source"`
	Sender           string    `json:"sender"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	Forwarded        bool      `json:"forwarded"`
	ForwardingMethod *string   `json:"forwardingMethod"`
}

// MarkForwarded flips the record to forwarded via method.
func (r *OTPRecord) MarkForwarded(method string) {
	m := method
	r.Forwarded = true
	r.ForwardingMethod = &m
}

// Method returns the forwarding method or "".
func (r *OTPRecord) Method() string {
	if r.ForwardingMethod == nil {
		return ""
	}
	return *r.ForwardingMethod
}

type otpRecordJSON struct {
	ID               string  `json:"id"`
	OTP              string  `json:"otp"`
	Source           string  `json:"source"`
	Sender           string  `json:"sender"`
	Message          string  `json:"message"`
	Timestamp        string  `json:"timestamp"`
	Forwarded        bool    `json:"forwarded"`
	ForwardingMethod *string `json:"forwardingMethod"`
}

func (r OTPRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(otpRecordJSON{
		ID:               r.ID,
		OTP:              r.OTP,
		Source:           r.Source,
		Sender:           r.Sender,
		Message:          r.Message,
		Timestamp:        timeutil.FormatISO(r.Timestamp),
		Forwarded:        r.Forwarded,
		ForwardingMethod: r.ForwardingMethod,
	})
}

func (r *OTPRecord) UnmarshalJSON(data []byte) error {
	var raw otpRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ts time.Time
	if raw.Timestamp != "" {
		parsed, err := timeutil.ParseISO(raw.Timestamp)
		if err != nil {
			return fmt.Errorf("otp record %s: bad timestamp: %w", raw.ID, err)
		}
		ts = parsed
	}
	*r = OTPRecord{
		ID:               raw.ID,
		OTP:              raw.OTP,
		Source:           raw.Source,
		Sender:           raw.Sender,
		Message:          raw.Message,
		Timestamp:        ts,
		Forwarded:        raw.Forwarded,
		ForwardingMethod: raw.ForwardingMethod,
	}
	if !r.Forwarded {
		r.ForwardingMethod = nil
	}
	return nil
}
