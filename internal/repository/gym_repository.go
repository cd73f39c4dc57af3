// This file defines the Gym model and repository methods for CRUD and lookup
// operations. A Gym is the tenant root of the system: it has exactly one
// owning user, a unique slug among live gyms, and a gym_staff table granting
// per-gym roles to other users. Gyms are soft-deleted only.
package repository

import (
	"context" // context allows passing deadlines and cancellation signals to DB operations
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Gym represents a gym entity persisted in the database. Optional profile
// fields are nullable in the schema and therefore carried as sql.NullString.
// OwnerID is immutable after creation; deletion only sets DeletedAt and
// flips the status to inactive.
type Gym struct {
	ID           uint64
	Name         string
	Slug         string
	Description  sql.NullString
	AddressLine1 sql.NullString
	AddressLine2 sql.NullString
	City         sql.NullString
	State        sql.NullString
	Country      sql.NullString
	PostalCode   sql.NullString
	ContactEmail sql.NullString
	ContactPhone sql.NullString
	WebsiteURL   sql.NullString
	LogoURL      sql.NullString
	Timezone     string
	Currency     string
	OwnerID      uint64
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    sql.NullTime
}

// GymUpdate carries a partial update: nil means "leave the column alone",
// a non-nil pointer overwrites it (possibly with an empty string). Name and
// Slug are validated/derived by the caller before reaching the repository.
type GymUpdate struct {
	Name         *string
	Slug         *string
	Description  *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	State        *string
	Country      *string
	PostalCode   *string
	ContactEmail *string
	ContactPhone *string
	WebsiteURL   *string
	Timezone     *string
	Currency     *string
	Status       *string
}

// gymCols is the column list shared by every SELECT that scans a full Gym.
const gymCols = "id, name, slug, description, address_line1, address_line2, city, state, country, postal_code, contact_email, contact_phone, website_url, logo_url, timezone, currency, owner_id, status, created_at, updated_at"

// GymRepo encapsulates all database queries related to gyms.
type GymRepo struct {
	db *sql.DB
}

// NewGymRepo constructs a GymRepo with the provided DB handle. This allows
// dependency injection of the database in tests and at startup.
func NewGymRepo(db *sql.DB) *GymRepo {
	return &GymRepo{db: db}
}

func scanGym(row *sql.Row, g *Gym) error {
	return row.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.AddressLine1, &g.AddressLine2,
		&g.City, &g.State, &g.Country, &g.PostalCode, &g.ContactEmail, &g.ContactPhone,
		&g.WebsiteURL, &g.LogoURL, &g.Timezone, &g.Currency, &g.OwnerID, &g.Status,
		&g.CreatedAt, &g.UpdatedAt)
}

// Create inserts a new gym and the owner's head_coach staff record in a
// single transaction. A gym must never exist without management staff, so
// both writes commit or neither does. On success the gym's ID, CreatedAt
// and UpdatedAt fields are populated. The result is named so the deferred
// commit can report its failure through it.
func (r *GymRepo) Create(ctx context.Context, g *Gym) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	const qInsert = `INSERT INTO gyms
	  (name, slug, description, address_line1, address_line2, city, state, country, postal_code,
	   contact_email, contact_phone, website_url, timezone, currency, owner_id, status)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, qInsert,
		g.Name, g.Slug, g.Description, g.AddressLine1, g.AddressLine2, g.City, g.State,
		g.Country, g.PostalCode, g.ContactEmail, g.ContactPhone, g.WebsiteURL,
		g.Timezone, g.Currency, g.OwnerID, g.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)

	// The creator always starts as the gym's head coach.
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO gym_staff (gym_id, user_id, role, status) VALUES (?,?,'head_coach','active')",
		g.ID, g.OwnerID); err != nil {
		return err
	}

	// Follow-up SELECT to populate default timestamp fields.
	err = tx.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM gyms WHERE id = ?", g.ID).
		Scan(&g.CreatedAt, &g.UpdatedAt)
	return err
}

// GetByID fetches a live gym by its ID regardless of owner. It returns
// ErrGymNotFound for missing and soft-deleted rows alike.
func (r *GymRepo) GetByID(ctx context.Context, id uint64) (*Gym, error) {
	q := "SELECT " + gymCols + " FROM gyms WHERE id = ? AND deleted_at IS NULL"
	var g Gym
	if err := scanGym(r.db.QueryRowContext(ctx, q, id), &g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGymNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListForUser returns all live gyms the user owns or staffs (any role whose
// staff record is not soft-deleted), newest first.
func (r *GymRepo) ListForUser(ctx context.Context, userID uint64) ([]*Gym, error) {
	q := `SELECT ` + gymCols + ` FROM gyms
	      WHERE deleted_at IS NULL
	        AND (owner_id = ? OR id IN (
	              SELECT gym_id FROM gym_staff WHERE user_id = ? AND deleted_at IS NULL))
	      ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Gym
	for rows.Next() {
		g := new(Gym)
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.AddressLine1, &g.AddressLine2,
			&g.City, &g.State, &g.Country, &g.PostalCode, &g.ContactEmail, &g.ContactPhone,
			&g.WebsiteURL, &g.LogoURL, &g.Timezone, &g.Currency, &g.OwnerID, &g.Status,
			&g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SlugExists reports whether a live gym other than excludeID already uses
// the slug. Pass excludeID 0 on creation.
func (r *GymRepo) SlugExists(ctx context.Context, slug string, excludeID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM gyms WHERE slug = ? AND id <> ? AND deleted_at IS NULL LIMIT 1",
		slug, excludeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies a partial update to a live gym and returns the fresh row.
// Only non-nil fields are written; updated_at always advances. It returns
// ErrGymNotFound when the row is missing or soft-deleted.
func (r *GymRepo) Update(ctx context.Context, id uint64, u GymUpdate) (*Gym, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("name", u.Name)
	add("slug", u.Slug)
	add("description", u.Description)
	add("address_line1", u.AddressLine1)
	add("address_line2", u.AddressLine2)
	add("city", u.City)
	add("state", u.State)
	add("country", u.Country)
	add("postal_code", u.PostalCode)
	add("contact_email", u.ContactEmail)
	add("contact_phone", u.ContactPhone)
	add("website_url", u.WebsiteURL)
	add("timezone", u.Timezone)
	add("currency", u.Currency)
	add("status", u.Status)

	q := "UPDATE gyms SET " + strings.Join(sets, ", ") + " WHERE id = ? AND deleted_at IS NULL"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is also 0 when the update is a no-op on an existing
		// row, so re-check existence before reporting not found.
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// SoftDelete marks a gym deleted and forces its status to inactive. The row
// and its staff records are retained.
func (r *GymRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE gyms SET deleted_at = NOW(), status = 'inactive', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL",
		id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGymNotFound
	}
	return nil
}
