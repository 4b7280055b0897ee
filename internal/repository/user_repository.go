package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinic-notify/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListByRole(ctx context.Context, role string, branchID *uuid.UUID) ([]domain.User, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID) ([]domain.User, error)
	ListBranchAdmins(ctx context.Context, branchID *uuid.UUID) ([]domain.User, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, email, full_name, role, branch_id, is_active, created_at FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)
	return &user, err
}

func (r *userRepository) ListByRole(ctx context.Context, role string, branchID *uuid.UUID) ([]domain.User, error) {
	var users []domain.User

	if branchID != nil {
		query := `
			SELECT id, email, full_name, role, branch_id, is_active, created_at
			FROM users
			WHERE role = $1 AND branch_id = $2 AND is_active = true`
		err := r.db.SelectContext(ctx, &users, query, role, *branchID)
		return users, err
	}

	query := `
		SELECT id, email, full_name, role, branch_id, is_active, created_at
		FROM users
		WHERE role = $1 AND is_active = true`
	err := r.db.SelectContext(ctx, &users, query, role)
	return users, err
}

func (r *userRepository) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]domain.User, error) {
	var users []domain.User
	query := `
		SELECT id, email, full_name, role, branch_id, is_active, created_at
		FROM users
		WHERE branch_id = $1 AND is_active = true`
	err := r.db.SelectContext(ctx, &users, query, branchID)
	return users, err
}

// ListBranchAdmins resolves the escalation cohort. A nil branch widens the
// net to every active administrator.
func (r *userRepository) ListBranchAdmins(ctx context.Context, branchID *uuid.UUID) ([]domain.User, error) {
	return r.ListByRole(ctx, domain.RoleAdmin, branchID)
}
