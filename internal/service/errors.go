package service

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError is any failure talking to the clustering service. Status is
// zero for transport failures and for failures raised before a request
// was sent.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *FetchError) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ErrMalformed marks a response body that could not be decoded or that
// violates the response contract.
var ErrMalformed = errors.New("malformed response")
