package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a store when no record matches a key.
var ErrNotFound = errors.New("not found")

// FetchError reports that a feed could not be retrieved or parsed.
// A pass that hits it must not touch the store.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError reports a persistence failure. Mutations committed before it
// stand.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotifyError reports a failed delivery to one endpoint.
type NotifyError struct {
	Endpoint string
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Endpoint, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
