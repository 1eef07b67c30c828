package codes

import (
	"fmt"
	"net/url"
	"path"
)

// VerificationURI returns the user-facing activation page under baseURL
func VerificationURI(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "device")
	return u.String(), nil
}

// CompleteURI returns verification_uri_complete per RFC 8628 section 3.3.1.
// It is empty when either input is unusable.
func CompleteURI(verificationURI, userCode string) string {
	if err := ValidateUserCode(userCode); err != nil {
		return ""
	}
	u, err := url.Parse(verificationURI)
	if err != nil || verificationURI == "" {
		return ""
	}
	q := u.Query()
	q.Set("code", userCode)
	u.RawQuery = q.Encode()
	return u.String()
}
