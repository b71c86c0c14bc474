package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// InitRootMessage carries the payload for the one-time root bootstrap.
type InitRootMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`

	OnResponse func(*User)
}

func (e InitRootMessage) Type() string { return "user.init_root" }

// InitRootHandler creates the first privileged user. It is the only
// creation path reachable without a valid session, and it disables
// itself by construction: once any user exists and a root email is
// configured, the guard below rejects every further call. There is no
// mutable "initialized" flag to reset.
type InitRootHandler struct {
	repo RepositoryManager
	cfg  Config
}

func NewInitRootHandler(repo RepositoryManager, cfg Config) *InitRootHandler {
	return &InitRootHandler{repo: repo, cfg: cfg}
}

func (h *InitRootHandler) Execute(ctx context.Context, event InitRootMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during root bootstrap",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitRootHandler) execute(ctx context.Context, event InitRootMessage) error {
	rootEmail := NormalizeEmail(h.cfg.GetRootEmail())
	suppliedEmail := NormalizeEmail(event.Email)

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if rootEmail != "" {
			count, err := h.repo.Users().CountUsersTx(ctx, tx)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count users")
			}

			if count > 0 {
				return ErrRootAlreadyInitialized
			}

			if suppliedEmail != rootEmail {
				return ErrRootEmailMismatch
			}
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = suppliedEmail
		user.Phone = event.Phone
		user.Name = rootUserName(event.Name, suppliedEmail)

		// Deterministic id from the email keeps repeated bootstrap
		// attempts against a wiped store converging on the same root
		// identity.
		if id, err := hashid.NewUUID(suppliedEmail); err == nil {
			user.ID = id
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create root user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "root bootstrap transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func rootUserName(name, email string) string {
	if name != "" {
		return name
	}

	if strings.Contains(email, "@") {
		name = strings.Split(email, "@")[0]
	}

	return name
}
