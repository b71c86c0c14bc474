package auth

import "time"

// Default session windows. A plain login gets a day; "remember me"
// stretches to a month. Both are overridable through SimpleConfig.
const (
	DefaultSessionDuration         = 24 * time.Hour
	DefaultExtendedSessionDuration = 30 * 24 * time.Hour
	DefaultTouchInterval           = time.Minute
)

// SimpleConfig is a plain-struct Config implementation. Construct it
// once at process start (typically from environment values) and pass
// it by reference into NewSessionManager and the middleware.
type SimpleConfig struct {
	SessionDuration         time.Duration
	ExtendedSessionDuration time.Duration
	TouchInterval           time.Duration
	TokenLookup             string
	AuthScheme              string
	ContextKey              string
	RootEmail               string
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSessionDuration() time.Duration {
	if c.SessionDuration > 0 {
		return c.SessionDuration
	}
	return DefaultSessionDuration
}

func (c *SimpleConfig) GetExtendedSessionDuration() time.Duration {
	if c.ExtendedSessionDuration > 0 {
		return c.ExtendedSessionDuration
	}
	return DefaultExtendedSessionDuration
}

func (c *SimpleConfig) GetTouchInterval() time.Duration {
	if c.TouchInterval > 0 {
		return c.TouchInterval
	}
	return DefaultTouchInterval
}

func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup != "" {
		return c.TokenLookup
	}
	return "header:Authorization"
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme != "" {
		return c.AuthScheme
	}
	return "Bearer"
}

func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey != "" {
		return c.ContextKey
	}
	return "auth"
}

func (c *SimpleConfig) GetRootEmail() string {
	return c.RootEmail
}
