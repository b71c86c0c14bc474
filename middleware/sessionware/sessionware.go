// Package sessionware is the fiber auth gate for opaque session
// tokens. Per request it extracts the bearer token, resolves it
// against the session store, and attaches the resulting AuthContext to
// both fiber locals and the request context. Every failure collapses
// into a uniform 401.
package sessionware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	auth "github.com/PeteRetep191/boring-seo-crm-sub000"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization

	// ErrTokenMissingOrMalformed covers an absent header as well as a
	// scheme that is not the configured one.
	ErrTokenMissingOrMalformed = errors.New("missing or malformed bearer token")
)

// SessionResolver mirrors SessionManager.AuthenticateRequest.
type SessionResolver interface {
	AuthenticateRequest(ctx context.Context, rawToken string, fp auth.Fingerprint) (*auth.AuthContext, error)
}

type Config struct {
	// Filter skips the gate entirely when it returns true.
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Resolver is required; it owns every validity decision.
	Resolver    SessionResolver
	ContextKey  string
	TokenLookup string
	AuthScheme  string
}

// New returns the gate middleware.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, cfg.getExtractors())
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		ac, err := cfg.Resolver.AuthenticateRequest(c.UserContext(), raw, auth.ExtractFingerprint(c))
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, ac)
		c.SetUserContext(auth.WithContext(c.UserContext(), ac))

		return cfg.SuccessHandler(c)
	}
}

// AuthContextFromLocals reads the AuthContext the gate stored for this
// request. The second return is false when the gate did not run.
func AuthContextFromLocals(c *fiber.Ctx, key string) (*auth.AuthContext, bool) {
	if key == "" {
		key = "auth"
	}
	ac, ok := c.Locals(key).(*auth.AuthContext)
	return ac, ok
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("AUTH: session middleware configuration: Resolver is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			// One body for every sub-cause: missing, unknown, expired,
			// archived owner. Nothing leaks which tokens once existed.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "auth"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// ExtractRawToken runs the extractors in order and returns the first
// hit.
func ExtractRawToken(c *fiber.Ctx, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetExtractors parses a lookup spec of the form
// "header:Authorization,query:token,cookie:session" into extractors.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c *fiber.Ctx) (string, error)

// tokenFromHeader returns a function that extracts the token from the
// request header, expecting "<scheme> <token>".
func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissingOrMalformed
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissingOrMalformed
	}
}

// tokenFromQuery returns a function that extracts the token from the
// query string.
func tokenFromQuery(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the
// named cookie.
func tokenFromCookie(name string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}
