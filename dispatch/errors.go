package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConnection: the recipient table could not be read. Fatal to the run.
	KindConnection Kind = "connection"
	// KindSend: the message for one row was not delivered.
	KindSend Kind = "send"
	// KindWrite: the message was delivered but the row was not marked Sent.
	KindWrite Kind = "write"
)

// Error is a classified failure. Row is zero for KindConnection.
type Error struct {
	Kind  Kind
	Row   int
	Email string
	Err   error
}

func (e *Error) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: row %d <%s>: %v", e.Kind, e.Row, e.Email, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsConnection(err error) bool {
	return KindOf(err) == KindConnection
}

func IsSend(err error) bool {
	return KindOf(err) == KindSend
}

func IsWrite(err error) bool {
	return KindOf(err) == KindWrite
}
