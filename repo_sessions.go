package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the session store adapter. Each operation is a single
// atomic document operation; sessions are independent rows, so the
// only cross-row invariant is token uniqueness, which the unique index
// on token_hash enforces at write time.
type Sessions interface {
	repository.Repository[*Session]

	Create(ctx context.Context, record *Session, criteria ...repository.InsertCriteria) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Session, criteria ...repository.InsertCriteria) (*Session, error)

	GetByToken(ctx context.Context, token string) (*Session, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*Session, error)

	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	ListForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Session, error)

	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeByToken(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	RevokeAllForUserExcept(ctx context.Context, userID, keep uuid.UUID) (int, error)

	Touch(ctx context.Context, id uuid.UUID) (*Session, error)
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var (
	_ Sessions                        = (*sessions)(nil)
	_ repository.Repository[*Session] = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (a *sessions) Create(ctx context.Context, record *Session, criteria ...repository.InsertCriteria) (*Session, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *sessions) CreateTx(ctx context.Context, tx bun.IDB, record *Session, criteria ...repository.InsertCriteria) (*Session, error) {
	prepareSessionDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *sessions) GetByToken(ctx context.Context, token string) (*Session, error) {
	return a.GetByTokenTx(ctx, a.db, token)
}

func (a *sessions) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*Session, error) {
	record := &Session{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			// No token value in the metadata: a bearer credential has
			// no business showing up in logs.
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	return a.ListForUserTx(ctx, a.db, userID)
}

func (a *sessions) ListForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Session, error) {
	var records []*Session
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.last_activity DESC, ?TableAlias.created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *sessions) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *sessions) RevokeByToken(ctx context.Context, token string) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.token_hash = ?", token).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (a *sessions) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return a.RevokeAllForUserTx(ctx, a.db, userID)
}

func (a *sessions) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (a *sessions) RevokeAllForUserExcept(ctx context.Context, userID, keep uuid.UUID) (int, error) {
	res, err := a.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.id != ?", keep).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (a *sessions) Touch(ctx context.Context, id uuid.UUID) (*Session, error) {
	record := &Session{}
	now := time.Now()
	err := a.db.NewUpdate().
		Model(record).
		Set("last_activity = ?", now).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Returning("*").
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func prepareSessionDefaults(record *Session) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.LastActivity.IsZero() {
		record.LastActivity = time.Now()
	}
}
