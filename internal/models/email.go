// internal/models/email.go
package models

import "time"

// InboundEmail is a single fetched message. It is immutable: the engine
// reads it, acts, and marks it processed only after the action succeeds.
type InboundEmail struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Person is a resolved name/email pair, used for account managers,
// specialists and email-chain recipients.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
