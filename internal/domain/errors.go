// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument indicates a malformed or missing caller-supplied parameter.
var ErrInvalidArgument = errors.New("invalid argument")
