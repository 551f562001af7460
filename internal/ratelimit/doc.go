// Package ratelimit implements a per-client sliding window limiter and the
// stats recorders that observe its decisions.
//
// The package knows nothing about HTTP. The middleware in internal/api
// derives the client key from the request and turns a Decision into a
// response.
package ratelimit
