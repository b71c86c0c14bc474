package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-errors"
)

// TokenKind is the closed set of token discriminators. Downstream
// matching is exhaustive over these three values instead of comparing
// free-form strings.
type TokenKind int

const (
	// KindUnknown is returned for malformed or foreign tokens.
	KindUnknown TokenKind = iota
	// KindSession tokens back interactive browser sessions.
	KindSession
	// KindAPI tokens back programmatic access. The session middleware
	// rejects them; API-token auth is a separate path.
	KindAPI
)

const (
	sessionTokenPrefix = "sess_"
	apiTokenPrefix     = "api_"

	// tokenEntropyBytes is fixed for the life of the service. Tokens
	// are stored verbatim, so changing it never invalidates anything
	// already issued.
	tokenEntropyBytes = 32
)

func (k TokenKind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// GenerateToken produces a random opaque token tagged with a
// recoverable kind prefix. The body is 32 bytes from the system CSPRNG
// encoded as unpadded base64url.
func GenerateToken(kind TokenKind) (string, error) {
	var prefix string
	switch kind {
	case KindSession:
		prefix = sessionTokenPrefix
	case KindAPI:
		prefix = apiTokenPrefix
	default:
		return "", errors.New("cannot generate token of unknown kind", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read token entropy").
			WithCode(errors.CodeInternal)
	}

	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseTokenKind recovers the kind tag from a presented token. It is
// pure and never fails: malformed input yields KindUnknown so callers
// can reject gracefully.
func ParseTokenKind(raw string) TokenKind {
	switch {
	case strings.HasPrefix(raw, sessionTokenPrefix):
		if len(raw) > len(sessionTokenPrefix) {
			return KindSession
		}
	case strings.HasPrefix(raw, apiTokenPrefix):
		if len(raw) > len(apiTokenPrefix) {
			return KindAPI
		}
	}
	return KindUnknown
}
