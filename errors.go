package auth

import (
	"github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is returned for any failed login, whether the
// account is missing or the password is wrong. One error for both
// avoids leaking which emails exist.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("INVALID_CREDENTIALS")

// ErrUnauthenticated covers every auth gate rejection: missing token,
// unknown token, expired session, archived owner. The body is uniform
// regardless of sub-cause.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("UNAUTHENTICATED")

// ErrSessionNotFound is for admin-style lookups by id, where a 404 is
// expected and harmless.
var ErrSessionNotFound = errors.New("session not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode("SESSION_NOT_FOUND")

// ErrUserNotFound mirrors ErrSessionNotFound for user lookups.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode("USER_NOT_FOUND")

// ErrMismatchedHashAndPassword is the bcrypt comparison failure.
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("PASSWORD_MISMATCH")

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = errors.New("can not process empty password", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode("EMPTY_PASSWORD")

// Root bootstrap rejections. These are intentionally verbose, the
// bootstrap path is an operational flow, not a public attack surface
// like login.
var (
	ErrRootAlreadyInitialized = errors.New("already initialized", errors.CategoryAuthz).
					WithCode(errors.CodeForbidden).
					WithTextCode("ROOT_ALREADY_INITIALIZED")

	ErrRootEmailMismatch = errors.New("email mismatch", errors.CategoryAuthz).
				WithCode(errors.CodeForbidden).
				WithTextCode("ROOT_EMAIL_MISMATCH")
)

// WrapInternal converts unexpected failures (store errors, hashing
// errors) into a generic internal error so nothing raw reaches a
// response. Already-classified rich errors pass through untouched.
func WrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich
	}
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithCode(errors.CodeInternal)
}

// IsAuthError reports whether err maps to the uniform 401 rejection.
func IsAuthError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.Category == errors.CategoryAuth
}
