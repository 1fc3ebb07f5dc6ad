package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

type OperatorRepo struct {
	db db.DB
}

func NewOperatorRepo(db db.DB) storage.OperatorRepository {
	return &OperatorRepo{db: db}
}

func (r *OperatorRepo) Create(ctx context.Context, username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash operator password: %w", err)
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO operators (username, password_hash)
        VALUES ($1, $2)
        ON CONFLICT (username) DO NOTHING
    `, username, string(hashed))
	if err != nil {
		return fmt.Errorf("insert operator %s: %w", username, err)
	}
	return nil
}

func (r *OperatorRepo) Exists(ctx context.Context, username string) (bool, error) {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM operators WHERE username = $1", username).Scan(&count); err != nil {
		return false, fmt.Errorf("count operators: %w", err)
	}
	return count > 0, nil
}

func (r *OperatorRepo) Validate(ctx context.Context, username, password string) (bool, error) {
	var operator repository.Operator
	err := r.db.Get(ctx, &operator, `
        SELECT id, username, password_hash, created_at
        FROM operators
        WHERE username = $1
    `, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get operator %s: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
