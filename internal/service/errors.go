package service

import (
	"errors"
	"strings"
)

// ErrInvalidCredentials is the generic login rejection. It carries no
// detail about which field failed.
var ErrInvalidCredentials = errors.New("service: invalid credentials")

// ValidationError reports missing or malformed request fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}
