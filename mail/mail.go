package mail

import (
	"context"
	"io"
)

// Sender delivers composed emails.
type Sender interface {
	Send(ctx context.Context, emails ...Email) error
	io.Closer
}

// Email represents an email message.
type Email struct {
	// Envelope
	From    Address
	To      []Address
	Cc      []Address
	Bcc     []Address
	Subject string

	// Headers
	Headers map[string]string

	// Body
	Body string // Plain text body
	HTML string // HTML body (optional)

	Attachments []Attachment
}

// Address represents an email address.
type Address struct {
	Name    string // "John Doe"
	Address string // "john@example.com"
}

// Attachment is a file carried in memory alongside the message.
type Attachment struct {
	Filename    string
	ContentType string // empty means guess from Filename
	Data        []byte
}

// Recipients returns every envelope recipient address (To, Cc and Bcc).
func (e Email) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	for _, list := range [][]Address{e.To, e.Cc, e.Bcc} {
		for _, a := range list {
			out = append(out, a.Address)
		}
	}
	return out
}
