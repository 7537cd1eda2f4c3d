package session

import (
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern is the authority's token shape: URL-safe, bounded length.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidToken reports whether tok matches the authority's token shape.
func ValidToken(tok string) bool {
	return tokenPattern.MatchString(tok)
}

// TokenFromURL extracts the display session token from a display URL.
// Recognized query parameters, in order: "s", then "Bingo". Both lookups
// are case-sensitive. The token is validated before any connection is
// attempted.
func TokenFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse display url: %w", err)
	}

	q := u.Query()
	tok := q.Get("s")
	if tok == "" {
		tok = q.Get("Bingo")
	}
	if tok == "" {
		return "", ErrNoToken
	}
	if !ValidToken(tok) {
		return "", fmt.Errorf("%w: malformed token %q", ErrInvalidToken, tok)
	}
	return tok, nil
}
