package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderstats/internal/model"
)

type UserRepo interface {
	// GetOrCreate returns the user with username, inserting it first when absent.
	// created reports whether this call inserted the row.
	GetOrCreate(ctx context.Context, tx *sql.Tx, username string) (user model.User, created bool, err error)
	GetByUsername(ctx context.Context, tx *sql.Tx, username string) (model.User, error)
}

type userRepo struct {
	db  *sql.DB
	log *zap.Logger
}

func NewUserRepo(db *sql.DB, baseLog *zap.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.Named("user_repo")}
}

func (r *userRepo) GetOrCreate(ctx context.Context, tx *sql.Tx, username string) (model.User, bool, error) {
	q := conn(r.db, tx)
	user := model.User{Username: username}

	// A concurrent insert of the same username blocks here until it settles,
	// then DO NOTHING leaves the winner's row to be read below.
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING id`,
		uuid.NewString(), username,
	).Scan(&user.ID)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, fmt.Errorf("insert user: %w", err)
	}

	err = q.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&user.ID)
	if err != nil {
		return model.User{}, false, fmt.Errorf("select user after conflict: %w", err)
	}
	return user, false, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, tx *sql.Tx, username string) (model.User, error) {
	user := model.User{Username: username}
	err := conn(r.db, tx).QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
