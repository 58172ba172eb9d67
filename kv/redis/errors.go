package redis

import (
	"github.com/pkg/errors"
)

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// IsKeyNotFound reports whether err comes from a missing key.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
