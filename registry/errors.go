package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingFields = errors.New("missing data")
	ErrMissingKey    = errors.New("missing RobloxUsername")
	ErrNotFound      = errors.New("flight not found")
)

// MissingFieldsError lists the required keys absent from a new flight.
type MissingFieldsError struct {
	Keys []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing data: %s", strings.Join(e.Keys, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}
