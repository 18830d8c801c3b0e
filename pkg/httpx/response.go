package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON writes v as the JSON response body with the given status.
// Responses written through here are stamped uncacheable; the few cacheable
// endpoints encode their bodies by hand.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the no-store and no-cache headers RFC 6749 requires on any
// response carrying tokens or credentials.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits a space-delimited request parameter such
// as an OAuth scope list. Empty or all-whitespace input yields nil.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
