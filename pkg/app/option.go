package app

import (
	"net/http"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddleware configures the app's HTTP servers to use the provided
// middleware.
//
// Middlewares are evaluated in addition order, and configured middlewares are
// executed after the app's default middlewares.
func WithMiddleware(middleware func(http.Handler) http.Handler) Option {
	return func(o *opts) {
		o.middlewares = append(o.middlewares, middleware)
	}
}
