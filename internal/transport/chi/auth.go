package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards the routes it wraps with a static API key list.
// The scheme match is case-insensitive. No usable keys disables the check.
func BearerAuth(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason == "" && !knownKey(keys, []byte(token)) {
				reason = "invalid api key"
			}
			if reason != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mushi"`)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential, or returns why it could not.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, cred, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(cred), ""
}

func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
