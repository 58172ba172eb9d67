package noop

import (
	"context"
	"sync"

	"github.com/pure-golang/sheetmail/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender accepts and drops every email. It stands in for the SMTP transport
// during dry runs so no mail credentials are needed.
type Sender struct {
	mx      sync.Mutex
	dropped int
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{}
}

// Send silently discards emails.
func (n *Sender) Send(_ context.Context, emails ...mail.Email) error {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.dropped += len(emails)
	return nil
}

// Dropped reports how many emails were discarded so far.
func (n *Sender) Dropped() int {
	n.mx.Lock()
	defer n.mx.Unlock()
	return n.dropped
}

// Close is a no-op.
func (n *Sender) Close() error {
	return nil
}
