package store

import (
	"context"
	"database/sql"
	"errors"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

// IsAdmin returns (isAdmin, isSuper).
func (s *AdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `
		SELECT is_super
		FROM admins
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, isSuper, nil
}

// HasRole is true for super admins regardless of grants.
func (s *AdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var allowed bool
	err := s.db.GetContext(ctx, &allowed, `
		SELECT EXISTS (
			SELECT 1 FROM admins WHERE user_id = $1 AND is_super = TRUE
		) OR EXISTS (
			SELECT 1 FROM admin_roles WHERE admin_user_id = $1 AND role = $2
		)
	`, userID, role)
	return allowed, err
}

func (s *AdminStore) Roles(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	err := s.db.SelectContext(ctx, &roles, `
		SELECT role
		FROM admin_roles
		WHERE admin_user_id = $1
		ORDER BY role
	`, userID)
	return roles, err
}

func (s *AdminStore) CreateAdmin(ctx context.Context, tx Execer, userID string, isSuper bool, createdBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (user_id, is_super, created_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, isSuper, createdBy)
	return err
}

func (s *AdminStore) GrantRole(ctx context.Context, tx Execer, adminUserID, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_roles (admin_user_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, adminUserID, role)
	return err
}

func (s *AdminStore) RevokeRole(ctx context.Context, tx Execer, adminUserID, role string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM admin_roles WHERE admin_user_id = $1 AND role = $2`, adminUserID, role)
	return err
}

// HasAnyAdmin takes a table lock so two concurrent first sign-ups cannot both become super admin.
func (s *AdminStore) HasAnyAdmin(ctx context.Context, tx Tx) (bool, error) {
	if _, err := tx.ExecContext(ctx, `LOCK TABLE admins IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return false, err
	}
	var count int
	err := tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM admins`)
	return count > 0, err
}
