package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// LoadUserWithSession reads a user and joins in its most recent live
// session, newest-first by last_activity then created_at. The join is
// explicit and on demand; nothing hooks into regular user queries.
func LoadUserWithSession(ctx context.Context, repo RepositoryManager, id uuid.UUID) (*User, error) {
	user, err := repo.Users().GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, WrapInternal(err, "failed to load user")
	}

	sessions, err := repo.Sessions().ListForUser(ctx, id)
	if err != nil {
		return nil, WrapInternal(err, "failed to load user sessions")
	}

	now := time.Now()
	for _, s := range sessions {
		if s.Expired(now) {
			continue
		}
		user.LastSession = s
		break
	}

	return user, nil
}
