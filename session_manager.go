package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthContext is the identity a successful gate pass hands to
// downstream handlers. It is an explicit return value; the gate never
// mutates shared request state.
type AuthContext struct {
	UserID  uuid.UUID
	User    *User
	Session *Session
	// TrustDowngraded flags a fingerprint mismatch against the session
	// snapshot. The request still proceeds; callers may require
	// re-authentication for sensitive operations.
	TrustDowngraded bool
}

// SessionManager drives the session lifecycle: creation at login,
// deletion at logout, and the cascades that keep "no orphaned
// sessions" true from a single enforcement point.
type SessionManager struct {
	repo     RepositoryManager
	cfg      Config
	logger   Logger
	provider LoggerProvider
}

var _ SessionAuthenticator = (*SessionManager)(nil)

// NewSessionManager returns a new SessionManager
func NewSessionManager(repo RepositoryManager, cfg Config) *SessionManager {
	provider, logger := ResolveLogger("auth.session_manager", nil, nil)
	return &SessionManager{
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
		provider: provider,
	}
}

func (m *SessionManager) WithLogger(l Logger) *SessionManager {
	m.provider, m.logger = ResolveLogger("auth.session_manager", m.provider, l)
	return m
}

// WithLoggerProvider overrides the logger provider used by the manager.
func (m *SessionManager) WithLoggerProvider(provider LoggerProvider) *SessionManager {
	m.provider, m.logger = ResolveLogger("auth.session_manager", provider, m.logger)
	return m
}

// Login verifies credentials and creates a fresh session. Concurrent
// logins by the same user each get their own independent session; that
// is multi-device support, not a race. The raw token is returned once
// and never re-derivable, the store holds the only copy.
func (m *SessionManager) Login(ctx context.Context, payload LoginPayload, fp Fingerprint) (*User, string, error) {
	user, err := m.repo.Users().GetByEmail(ctx, payload.GetIdentifier())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Burn a comparison so missing accounts cost the same as
			// wrong passwords.
			ComparePasswordAndHash(payload.GetPassword(), dummyHash())
			return nil, "", ErrInvalidCredentials
		}
		m.logger.Error("login user lookup failed", "error", err)
		return nil, "", WrapInternal(err, "failed to verify credentials")
	}

	if user.Archived {
		return nil, "", ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(payload.GetPassword(), user.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := GenerateToken(KindSession)
	if err != nil {
		m.logger.Error("login token generation failed", "error", err)
		return nil, "", WrapInternal(err, "failed to issue session token")
	}

	now := time.Now()
	session := (&Session{
		Token:        token,
		UserID:       user.ID,
		LastActivity: now,
		ExpiresAt:    m.expiry(now, payload.GetExtendedSession()),
	}).SetFingerprint(fp)

	if _, err := m.repo.Sessions().Create(ctx, session); err != nil {
		// A duplicate token collides with the unique index. With 256
		// bits of entropy this is effectively impossible, but it must
		// surface as a retryable error, never be swallowed.
		m.logger.Error("login session persist failed", "error", err, "user_id", user.ID.String())
		return nil, "", errors.Wrap(err, errors.CategoryOperation, "failed to persist session").
			WithCode(errors.CodeInternal)
	}

	user.LastSession = session
	return user, token, nil
}

// Logout deletes the session matching the token. Deleting a session
// that is already gone is not an error; logout is idempotent.
func (m *SessionManager) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	if _, err := m.repo.Sessions().RevokeByToken(ctx, rawToken); err != nil {
		m.logger.Error("logout delete failed", "error", err)
		return WrapInternal(err, "failed to delete session")
	}

	return nil
}

// LogoutAll deletes every session for the user, the "sign out
// everywhere" operation.
func (m *SessionManager) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := m.repo.Sessions().RevokeAllForUser(ctx, userID)
	if err != nil {
		m.logger.Error("logout all failed", "error", err, "user_id", userID.String())
		return 0, WrapInternal(err, "failed to delete sessions")
	}

	m.logger.Info("deleted all sessions", "user_id", userID.String(), "count", n)
	return n, nil
}

// RotateOnPasswordChange deletes every session for the user except the
// most recently active one, so the session that performed the change
// survives while all others are invalidated. With zero live sessions
// (a password changed through an out-of-band path) it is a no-op:
// nothing is kept and nothing is created. A session created
// concurrently between the read and the delete may survive; that is an
// accepted eventual-consistency gap, not a correctness bug.
func (m *SessionManager) RotateOnPasswordChange(ctx context.Context, userID uuid.UUID) (int, error) {
	sessions, err := m.repo.Sessions().ListForUser(ctx, userID)
	if err != nil {
		return 0, WrapInternal(err, "failed to list sessions for rotation")
	}

	if len(sessions) == 0 {
		return 0, nil
	}

	newest := sessions[0]
	n, err := m.repo.Sessions().RevokeAllForUserExcept(ctx, userID, newest.ID)
	if err != nil {
		m.logger.Error("session rotation failed", "error", err, "user_id", userID.String())
		return 0, WrapInternal(err, "failed to rotate sessions")
	}

	m.logger.Info("rotated sessions after password change",
		"user_id", userID.String(),
		"kept", newest.ID.String(),
		"deleted", n,
	)
	return n, nil
}

// ChangePassword verifies the current password, stores the new hash,
// and rotates sessions with the keep-newest policy.
func (m *SessionManager) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := m.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return WrapInternal(err, "failed to load user")
	}

	if err := ComparePasswordAndHash(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(next)
	if err != nil {
		return WrapInternal(err, "failed to hash password")
	}

	if err := m.repo.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return WrapInternal(err, "failed to update password")
	}

	if _, err := m.RotateOnPasswordChange(ctx, userID); err != nil {
		return err
	}

	return nil
}

// ArchiveUser soft-deletes the user and unconditionally removes every
// session it owns. Archival and rotation cascades live here, in one
// place, so the "no orphaned sessions" invariant has a single
// enforcement point.
func (m *SessionManager) ArchiveUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := m.repo.Users().SetArchived(ctx, userID, true)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, WrapInternal(err, "failed to archive user")
	}

	if _, err := m.ArchiveCascade(ctx, userID); err != nil {
		return nil, err
	}

	return user, nil
}

// ArchiveCascade deletes all sessions for an archived user, keep-newest
// does not apply.
func (m *SessionManager) ArchiveCascade(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := m.repo.Sessions().RevokeAllForUser(ctx, userID)
	if err != nil {
		m.logger.Error("archive cascade failed", "error", err, "user_id", userID.String())
		return 0, WrapInternal(err, "failed to cascade session deletion")
	}
	return n, nil
}

// Authenticate resolves a bearer token into an AuthContext. Every
// rejection path collapses into the same ErrUnauthenticated so the
// response never reveals whether a token existed, expired, or belongs
// to an archived account.
func (m *SessionManager) Authenticate(ctx context.Context, rawToken string) (*AuthContext, error) {
	if rawToken == "" {
		return nil, ErrUnauthenticated
	}

	if kind := ParseTokenKind(rawToken); kind != KindSession {
		m.logger.Debug("rejected non-session token", "kind", kind.String())
		return nil, ErrUnauthenticated
	}

	session, err := m.repo.Sessions().GetByToken(ctx, rawToken)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			m.logger.Error("session lookup failed", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	now := time.Now()
	if session.Expired(now) {
		return nil, ErrUnauthenticated
	}

	user, err := m.repo.Users().GetByID(ctx, session.UserID.String())
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			m.logger.Error("session owner lookup failed", "error", err, "session_id", session.ID.String())
		}
		return nil, ErrUnauthenticated
	}

	// Archived users are treated as having no valid session even with
	// an unexpired token; this backs the archival cascade should a
	// deletion ever be missed.
	if user.Archived {
		return nil, ErrUnauthenticated
	}

	m.maybeTouch(ctx, session, now)

	return &AuthContext{
		UserID:  user.ID,
		User:    user,
		Session: session,
	}, nil
}

// AuthenticateRequest is Authenticate plus the fingerprint policy: a
// mismatch against the stored snapshot downgrades trust and logs a
// warning, it never blocks the request.
func (m *SessionManager) AuthenticateRequest(ctx context.Context, rawToken string, fp Fingerprint) (*AuthContext, error) {
	ac, err := m.Authenticate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if CompareFingerprints(ac.Session.GetFingerprint(), fp) == FingerprintMismatched {
		m.logger.Warn("session fingerprint mismatch",
			"session_id", ac.Session.ID.String(),
			"user_id", ac.UserID.String(),
			"session_ip", ac.Session.IP,
			"request_ip", fp.IP,
		)
		ac.TrustDowngraded = true
	}

	return ac, nil
}

// maybeTouch refreshes last_activity at most once per touch interval
// so hot sessions do not write on every request. Failure is logged and
// ignored; activity tracking never blocks an authenticated request.
func (m *SessionManager) maybeTouch(ctx context.Context, session *Session, now time.Time) {
	if now.Sub(session.LastActivity) < m.cfg.GetTouchInterval() {
		return
	}

	updated, err := m.repo.Sessions().Touch(ctx, session.ID)
	if err != nil {
		m.logger.Warn("session touch failed", "error", err, "session_id", session.ID.String())
		return
	}

	session.LastActivity = updated.LastActivity
	session.UpdatedAt = updated.UpdatedAt
}

func (m *SessionManager) expiry(now time.Time, extended bool) time.Time {
	if extended {
		return now.Add(m.cfg.GetExtendedSessionDuration())
	}
	return now.Add(m.cfg.GetSessionDuration())
}

// dummyHash returns a valid bcrypt digest of a random throwaway value,
// used to equalize login timing when the account does not exist.
var dummyHash = sync.OnceValue(func() string {
	h, err := HashPassword(uuid.NewString())
	if err != nil {
		panic(err)
	}
	return h
})
