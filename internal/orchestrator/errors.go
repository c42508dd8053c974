package orchestrator

import (
	"errors"
	"fmt"
)

// ErrUnsupportedService indicates the URL's host matches no known
// provider.
var ErrUnsupportedService = errors.New("unsupported service")

// UnsupportedServiceError carries the offending URL.
type UnsupportedServiceError struct {
	URL string
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service: %s (supported: Channel 4, ITV, Channel 5)", e.URL)
}

func (e *UnsupportedServiceError) Unwrap() error { return ErrUnsupportedService }
