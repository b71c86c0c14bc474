package auth_test

import (
	"context"
	"testing"

	auth "github.com/PeteRetep191/boring-seo-crm-sub000"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRootCreatesFirstUser(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	handler := auth.NewInitRootHandler(repo, cfg)

	var created *auth.User
	err := handler.Execute(context.Background(), auth.InitRootMessage{
		Email:    "root@example.com",
		Password: "bootstrap-password-1",
		OnResponse: func(u *auth.User) {
			created = u
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "root@example.com", created.Email)
	// Name falls back to the email local part when omitted.
	assert.Equal(t, "root", created.Name)
	assert.NotEqual(t, "", created.ID.String())

	count, err := repo.Users().CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInitRootDeterministicIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	msg := auth.InitRootMessage{
		Email:    "root@example.com",
		Password: "bootstrap-password-1",
	}

	var first, second *auth.User

	repoA := setupTestRepo(t)
	msg.OnResponse = func(u *auth.User) { first = u }
	require.NoError(t, auth.NewInitRootHandler(repoA, cfg).Execute(context.Background(), msg))

	// A wiped store converges on the same root identity.
	repoB := setupTestRepo(t)
	msg.OnResponse = func(u *auth.User) { second = u }
	require.NoError(t, auth.NewInitRootHandler(repoB, cfg).Execute(context.Background(), msg))

	assert.Equal(t, first.ID, second.ID)
}

func TestInitRootRejectsSecondCall(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	handler := auth.NewInitRootHandler(repo, cfg)
	msg := auth.InitRootMessage{
		Email:    "root@example.com",
		Password: "bootstrap-password-1",
	}

	require.NoError(t, handler.Execute(context.Background(), msg))

	err := handler.Execute(context.Background(), msg)
	require.ErrorIs(t, err, auth.ErrRootAlreadyInitialized)

	count, err := repo.Users().CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInitRootRejectsAnyUserPresent(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	// The guard counts all users, not just root-like ones.
	createTestUser(t, repo, "someone@example.com", "someone-password-1")

	err := auth.NewInitRootHandler(repo, cfg).Execute(context.Background(), auth.InitRootMessage{
		Email:    "root@example.com",
		Password: "bootstrap-password-1",
	})
	require.ErrorIs(t, err, auth.ErrRootAlreadyInitialized)
}

func TestInitRootEmailMismatch(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	err := auth.NewInitRootHandler(repo, cfg).Execute(context.Background(), auth.InitRootMessage{
		Email:    "intruder@example.com",
		Password: "bootstrap-password-1",
	})
	require.ErrorIs(t, err, auth.ErrRootEmailMismatch)

	count, err := repo.Users().CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInitRootEmailComparisonIsNormalized(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "Root@Example.com"

	var created *auth.User
	err := auth.NewInitRootHandler(repo, cfg).Execute(context.Background(), auth.InitRootMessage{
		Email:    "ROOT@example.COM",
		Password: "bootstrap-password-1",
		OnResponse: func(u *auth.User) {
			created = u
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", created.Email)
}

func TestInitRootCancelledContext(t *testing.T) {
	repo := setupTestRepo(t)
	cfg := testConfig()
	cfg.RootEmail = "root@example.com"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := auth.NewInitRootHandler(repo, cfg).Execute(ctx, auth.InitRootMessage{
		Email:    "root@example.com",
		Password: "bootstrap-password-1",
	})
	require.Error(t, err)
}
