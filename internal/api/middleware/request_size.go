package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize is 1MB for public endpoints
	DefaultMaxBodySize int64 = 1 << 20

	// AdminMaxBodySize covers the small admin edit payloads.
	AdminMaxBodySize int64 = 64 << 10
)

// RequestSize limits the size of incoming request bodies with
// http.MaxBytesReader. Decoding an oversized body fails with
// *http.MaxBytesError.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PublicRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}

func AdminRequestSize() func(http.Handler) http.Handler {
	return RequestSize(AdminMaxBodySize)
}
