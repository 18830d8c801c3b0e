package httpx

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// ParseBasicAuth extracts client credentials from an HTTP Basic Authorization
// header per RFC 6749 section 2.3.1. The client_id and client_secret are
// application/x-www-form-urlencoded before being base64-encoded, so both
// halves are percent-decoded after the split.
//
// Malformed input yields ok=false rather than an error; the caller treats it
// the same as absent credentials.
func ParseBasicAuth(header string) (clientID, clientSecret string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}

	id, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}

	clientID, err = url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	clientSecret, err = url.QueryUnescape(secret)
	if err != nil {
		return "", "", false
	}

	return clientID, clientSecret, true
}
