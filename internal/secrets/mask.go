package secrets

import (
	"net/url"
	"strings"
)

const redacted = "xxxxx"

// Mask returns a masked version of a secret string for safe logging.
// Returns the first 4 characters followed by "..." if the secret is longer than 8 chars,
// otherwise returns "***" to avoid exposing short secrets.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..."
}

// sensitiveParam reports whether a query parameter looks like a credential.
func sensitiveParam(name string) bool {
	name = strings.ToLower(name)
	for _, s := range []string{"token", "key", "secret", "password", "sig", "auth"} {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// MaskURL redacts the password of a URL such as a postgres connection
// string, and the values of credential-like query parameters (api_key,
// access_token, ...) found in collection source URLs. Unparseable input is
// masked whole.
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Mask(rawURL)
	}
	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for k := range q {
			if sensitiveParam(k) {
				q.Set(k, redacted)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	return u.Redacted()
}
