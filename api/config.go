package api

import "errors"

// ErrNoDriver is returned when the server is constructed without a store.
var ErrNoDriver = errors.New("api server requires a store driver")

// Config holds the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on, e.g. ":8787".
	ListenAddr string

	// DefaultScope is used when a request carries no scope parameter.
	DefaultScope string

	// RecallLimit caps /v1/recall responses when no limit is given.
	RecallLimit int
}
