package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/PeteRetep191/boring-seo-crm-sub000"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	identifier string
	password   string
	extended   bool
}

func (p loginPayload) GetIdentifier() string    { return p.identifier }
func (p loginPayload) GetPassword() string      { return p.password }
func (p loginPayload) GetExtendedSession() bool { return p.extended }

func TestLoginSuccess(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	created := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	user, token, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, auth.KindSession, auth.ParseTokenKind(token))
	require.NotNil(t, user.LastSession)
	assert.Equal(t, "203.0.113.10", user.LastSession.IP)
	assert.True(t, user.LastSession.ExpiresAt.After(time.Now()))
}

func TestLoginNormalizesIdentifier(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	user, _, err := manager.Login(context.Background(), loginPayload{
		identifier: "  PEPERONI@Example.COM ",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)
	assert.Equal(t, "peperoni@example.com", user.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, _, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "wrong-password",
	}, testFingerprint())
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())

	_, _, err := manager.Login(context.Background(), loginPayload{
		identifier: "nobody@example.com",
		password:   "whatever-password",
	}, testFingerprint())

	// Unknown account and wrong password collapse into the same error.
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginArchivedUser(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, err := manager.ArchiveUser(context.Background(), user.ID)
	require.NoError(t, err)

	_, _, err = manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginExtendedSession(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	manager := auth.NewSessionManager(repo, cfg)
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	plain, _, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)

	extended, _, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
		extended:   true,
	}, testFingerprint())
	require.NoError(t, err)

	// Remember-me pushes expiry well past the default window.
	gap := extended.LastSession.ExpiresAt.Sub(plain.LastSession.ExpiresAt)
	assert.Greater(t, gap, cfg.GetExtendedSessionDuration()-cfg.GetSessionDuration()-time.Minute)
}

func TestConcurrentLoginsCreateIndependentSessions(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	payload := loginPayload{identifier: "peperoni@example.com", password: "secret-password-1"}

	_, token1, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)
	_, token2, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)

	sessions, err := repo.Sessions().ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, token, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background(), token))
	require.NoError(t, manager.Logout(context.Background(), token))
	require.NoError(t, manager.Logout(context.Background(), ""))

	_, err = manager.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestLogoutAllOnlyAffectsOwner(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	alice := createTestUser(t, repo, "alice@example.com", "alice-password-1")
	createTestUser(t, repo, "bob@example.com", "bob-password-111")

	alicePayload := loginPayload{identifier: "alice@example.com", password: "alice-password-1"}
	bobPayload := loginPayload{identifier: "bob@example.com", password: "bob-password-111"}

	_, _, err := manager.Login(context.Background(), alicePayload, testFingerprint())
	require.NoError(t, err)
	_, _, err = manager.Login(context.Background(), alicePayload, testFingerprint())
	require.NoError(t, err)

	_, bobToken, err := manager.Login(context.Background(), bobPayload, testFingerprint())
	require.NoError(t, err)

	n, err := manager.LogoutAll(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Bob's session survives.
	ac, err := manager.Authenticate(context.Background(), bobToken)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", ac.User.Email)
}

func TestRotateOnPasswordChangeKeepsNewest(t *testing.T) {
	repo, db := setupTestRepoDB(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	payload := loginPayload{identifier: "peperoni@example.com", password: "secret-password-1"}

	now := time.Now()
	var tokens []string
	for i := 0; i < 3; i++ {
		_, token, err := manager.Login(context.Background(), payload, testFingerprint())
		require.NoError(t, err)
		tokens = append(tokens, token)

		// Separate last_activity so newest-first ordering is stable.
		session, err := repo.Sessions().GetByToken(context.Background(), token)
		require.NoError(t, err)
		_, err = db.NewUpdate().
			Model((*auth.Session)(nil)).
			Set("last_activity = ?", now.Add(time.Duration(i)*time.Minute)).
			Where("id = ?", session.ID).
			Exec(context.Background())
		require.NoError(t, err)
	}

	n, err := manager.RotateOnPasswordChange(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Only the most recently active session remains valid.
	_, err = manager.Authenticate(context.Background(), tokens[0])
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = manager.Authenticate(context.Background(), tokens[1])
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	_, err = manager.Authenticate(context.Background(), tokens[2])
	require.NoError(t, err)
}

func TestRotateWithNoSessionsIsNoOp(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	n, err := manager.RotateOnPasswordChange(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestChangePassword(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	payload := loginPayload{identifier: "peperoni@example.com", password: "secret-password-1"}
	_, oldToken, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)
	_, newToken, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)

	t.Run("rejects wrong current password", func(t *testing.T) {
		err := manager.ChangePassword(context.Background(), user.ID, "wrong-password", "next-password-22")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("updates hash and rotates sessions", func(t *testing.T) {
		err := manager.ChangePassword(context.Background(), user.ID, "secret-password-1", "next-password-22")
		require.NoError(t, err)

		_, _, err = manager.Login(context.Background(), payload, testFingerprint())
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, _, err = manager.Login(context.Background(), loginPayload{
			identifier: "peperoni@example.com",
			password:   "next-password-22",
		}, testFingerprint())
		require.NoError(t, err)

		// The older session is gone, the newest one survives.
		_, err = manager.Authenticate(context.Background(), oldToken)
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
		_, err = manager.Authenticate(context.Background(), newToken)
		require.NoError(t, err)
	})
}

func TestArchiveUserCascadesSessions(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	payload := loginPayload{identifier: "peperoni@example.com", password: "secret-password-1"}
	_, token1, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)
	_, token2, err := manager.Login(context.Background(), payload, testFingerprint())
	require.NoError(t, err)

	archived, err := manager.ArchiveUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	for _, token := range []string{token1, token2} {
		_, err = manager.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
	}

	sessions, err := repo.Sessions().ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestAuthenticate(t *testing.T) {
	repo, db := setupTestRepoDB(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, token, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		ac, err := manager.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, ac.UserID)
		assert.Equal(t, "peperoni@example.com", ac.User.Email)
		assert.False(t, ac.TrustDowngraded)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := manager.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		fresh, err := auth.GenerateToken(auth.KindSession)
		require.NoError(t, err)
		_, err = manager.Authenticate(context.Background(), fresh)
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("api token rejected by session gate", func(t *testing.T) {
		apiToken, err := auth.GenerateToken(auth.KindAPI)
		require.NoError(t, err)
		_, err = manager.Authenticate(context.Background(), apiToken)
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("expired session", func(t *testing.T) {
		session, err := repo.Sessions().GetByToken(context.Background(), token)
		require.NoError(t, err)

		_, err = db.NewUpdate().
			Model((*auth.Session)(nil)).
			Set("expires_at = ?", time.Now().Add(-time.Hour)).
			Where("id = ?", session.ID).
			Exec(context.Background())
		require.NoError(t, err)

		_, err = manager.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}

type logSpy struct {
	errors []string
	warns  []string
}

func (l *logSpy) Debug(msg string, args ...any) {}
func (l *logSpy) Info(msg string, args ...any)  {}
func (l *logSpy) Warn(msg string, args ...any)  { l.warns = append(l.warns, msg) }
func (l *logSpy) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }

func TestAuthenticateUnknownLookupsAreNotErrorLogged(t *testing.T) {
	repo := setupTestRepo(t)
	spy := &logSpy{}
	manager := auth.NewSessionManager(repo, testConfig()).WithLogger(spy)
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	// An unknown token is an expected rejection, not a store failure.
	token, err := auth.GenerateToken(auth.KindSession)
	require.NoError(t, err)
	_, err = manager.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Empty(t, spy.errors)

	// Same for an unknown account at login: the not-found classification
	// must collapse into invalid credentials, never an internal error.
	_, _, err = manager.Login(context.Background(), loginPayload{
		identifier: "nobody@example.com",
		password:   "whatever-password",
	}, testFingerprint())
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Empty(t, spy.errors)
}

func TestAuthenticateRequestFingerprintMismatchDowngradesTrust(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, token, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)

	t.Run("matching fingerprint keeps trust", func(t *testing.T) {
		ac, err := manager.AuthenticateRequest(context.Background(), token, testFingerprint())
		require.NoError(t, err)
		assert.False(t, ac.TrustDowngraded)
	})

	t.Run("changed network downgrades but never rejects", func(t *testing.T) {
		fp := testFingerprint()
		fp.IP = "198.51.100.7"

		ac, err := manager.AuthenticateRequest(context.Background(), token, fp)
		require.NoError(t, err)
		assert.True(t, ac.TrustDowngraded)
	})
}

func TestAuthenticateTouchThrottling(t *testing.T) {
	repo, db := setupTestRepoDB(t)
	cfg := testConfig()
	cfg.TouchInterval = time.Hour
	manager := auth.NewSessionManager(repo, cfg)
	createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	_, token, err := manager.Login(context.Background(), loginPayload{
		identifier: "peperoni@example.com",
		password:   "secret-password-1",
	}, testFingerprint())
	require.NoError(t, err)

	before, err := repo.Sessions().GetByToken(context.Background(), token)
	require.NoError(t, err)

	// Within the interval the activity timestamp must not move.
	_, err = manager.Authenticate(context.Background(), token)
	require.NoError(t, err)

	after, err := repo.Sessions().GetByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, before.LastActivity.Unix(), after.LastActivity.Unix())

	// Backdate the activity past the interval; the next pass touches.
	stale := time.Now().Add(-2 * time.Hour)
	_, err = db.NewUpdate().
		Model((*auth.Session)(nil)).
		Set("last_activity = ?", stale).
		Where("id = ?", before.ID).
		Exec(context.Background())
	require.NoError(t, err)

	_, err = manager.Authenticate(context.Background(), token)
	require.NoError(t, err)

	touched, err := repo.Sessions().GetByToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, touched.LastActivity.After(stale.Add(time.Hour)))
}

func TestLoadUserWithSession(t *testing.T) {
	repo := setupTestRepo(t)
	manager := auth.NewSessionManager(repo, testConfig())
	user := createTestUser(t, repo, "peperoni@example.com", "secret-password-1")

	t.Run("no sessions", func(t *testing.T) {
		loaded, err := auth.LoadUserWithSession(context.Background(), repo, user.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded.LastSession)
		assert.False(t, loaded.IsLoggedIn())
	})

	t.Run("live session attached", func(t *testing.T) {
		_, _, err := manager.Login(context.Background(), loginPayload{
			identifier: "peperoni@example.com",
			password:   "secret-password-1",
		}, testFingerprint())
		require.NoError(t, err)

		loaded, err := auth.LoadUserWithSession(context.Background(), repo, user.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded.LastSession)
		assert.True(t, loaded.IsLoggedIn())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.LoadUserWithSession(context.Background(), repo, uuid.New())
		require.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}
