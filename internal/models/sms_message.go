package models

import "time"

// SMSMessage is one inbound text as delivered by an SMS source.
type SMSMessage struct {
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	Date   time.Time `json:"date"`
}
