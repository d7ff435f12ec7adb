package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced order does not exist.
var ErrNotFound = errors.New("order not found")

// ValidationError indicates a request was rejected before touching the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TxError indicates the confirmation transaction failed and was rolled back.
type TxError struct {
	Err error
}

func (e *TxError) Error() string {
	return "confirm order: " + e.Err.Error()
}

func (e *TxError) Unwrap() error {
	return e.Err
}
