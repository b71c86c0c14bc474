package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal structured logger the package depends on.
// Messages are plain strings followed by key-value pairs, so
// slog-style adapters drop in without glue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named child loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// ResolveLogger picks the effective logger for a component: a named
// logger from the provider wins, then the explicit fallback, then the
// package default.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}
	if fallback != nil {
		return provider, fallback
	}
	return provider, defLogger{}
}

// SessionAuthenticator resolves bearer tokens into authenticated
// request identities and drives the session lifecycle.
type SessionAuthenticator interface {
	Login(ctx context.Context, payload LoginPayload, fp Fingerprint) (*User, string, error)
	Logout(ctx context.Context, rawToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	Authenticate(ctx context.Context, rawToken string) (*AuthContext, error)
}

// LoginPayload is the credential shape the lifecycle manager consumes.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// Config holds auth options. Implementations are plain structs built
// once at process start and passed into constructors; core logic never
// reads ambient globals.
type Config interface {
	GetSessionDuration() time.Duration
	GetExtendedSessionDuration() time.Duration
	GetTouchInterval() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetContextKey() string
	GetRootEmail() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLogLine("[ERR] AUTH ", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLogLine("[WRN] AUTH ", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLogLine("[INF] AUTH ", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLogLine("[DBG] AUTH ", msg, args...))
}

// formatLogLine renders slog-style trailing key-value pairs as
// key=value. A dangling odd argument is printed bare.
func formatLogLine(prefix, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(msg)

	i := 0
	for ; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if i < len(args) {
		fmt.Fprintf(&b, " %v", args[i])
	}

	return b.String()
}
