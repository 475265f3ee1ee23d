package idempotency

import (
	"net/http"
	"strings"
)

const (
	Header         = "Idempotency-Key"
	ReplayedHeader = "Idempotent-Replayed"
	MaxLen         = 128
)

// Key returns the trimmed header value; ok is false when it exceeds MaxLen.
func Key(r *http.Request) (key string, ok bool) {
	key = strings.TrimSpace(r.Header.Get(Header))
	return key, len(key) <= MaxLen
}

// Replayed marks a response that returns an earlier result for the same key.
func Replayed(w http.ResponseWriter) {
	w.Header().Set(ReplayedHeader, "true")
}
