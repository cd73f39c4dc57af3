package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Staff roles, ordered by privilege. head_coach may manage the gym's
// profile; coach only appears on rosters. Roles are granted exclusively
// through gym_staff rows, never at registration.
const (
	RoleHeadCoach = "head_coach"
	RoleCoach     = "coach"
)

// StaffRepo queries the gym_staff association table.
type StaffRepo struct {
	db *sql.DB
}

func NewStaffRepo(db *sql.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

// HasActiveRole reports whether the user holds the given role for the gym
// with an active, non-deleted staff record.
func (r *StaffRepo) HasActiveRole(ctx context.Context, gymID, userID uint64, role string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM gym_staff WHERE gym_id = ? AND user_id = ? AND role = ? AND status = 'active' AND deleted_at IS NULL LIMIT 1",
		gymID, userID, role).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
