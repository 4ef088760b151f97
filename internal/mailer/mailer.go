package mailer

import "context"

// SMTPConfig is the resolved transport configuration for one send. Password
// is the decrypted credential; it lives only for the duration of the call.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
}

// Message is one outbound email.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Result carries the provider message id recorded on the send log.
type Result struct {
	MessageID string
}

// Mailer abstracts SMTP submission. Mocking this interface in tests gives
// full control over send behaviour without a real SMTP server.
type Mailer interface {
	Send(ctx context.Context, cfg SMTPConfig, msg Message) (*Result, error)
}
