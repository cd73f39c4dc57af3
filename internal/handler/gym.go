package handler // gym handlers implement the gym CRUD surface and its authorization gate

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
	queue_publisher "github.com/iliyamo/gym-management/internal/service"
	"github.com/iliyamo/gym-management/internal/utils"
)

// GymHandler bundles the repositories needed to manage gyms.
type GymHandler struct {
	Gyms  *repository.GymRepo
	Staff *repository.StaffRepo
}

// NewGymHandler constructs a GymHandler and panics if any dependency is nil.
func NewGymHandler(gyms *repository.GymRepo, staff *repository.StaffRepo) *GymHandler {
	if gyms == nil || staff == nil {
		panic("nil repository passed to NewGymHandler")
	}
	return &GymHandler{Gyms: gyms, Staff: staff}
}

// gymReq binds create/update payloads. Every field is a pointer so that a
// partial update can tell "absent" apart from "set to empty".
type gymReq struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	AddressLine1 *string `json:"addressLine1"`
	AddressLine2 *string `json:"addressLine2"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Country      *string `json:"country"`
	PostalCode   *string `json:"postalCode"`
	ContactEmail *string `json:"contactEmail"`
	ContactPhone *string `json:"contactPhone"`
	WebsiteURL   *string `json:"websiteUrl"`
	Timezone     *string `json:"timezone"`
	Currency     *string `json:"currency"`
	Status       *string `json:"status"`
}

// gymJSON is the sanitized wire shape of a gym. Optional columns render as
// null rather than empty strings.
type gymJSON struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description"`
	AddressLine1 *string   `json:"addressLine1"`
	AddressLine2 *string   `json:"addressLine2"`
	City         *string   `json:"city"`
	State        *string   `json:"state"`
	Country      *string   `json:"country"`
	PostalCode   *string   `json:"postalCode"`
	ContactEmail *string   `json:"contactEmail"`
	ContactPhone *string   `json:"contactPhone"`
	WebsiteURL   *string   `json:"websiteUrl"`
	LogoURL      *string   `json:"logoUrl"`
	Timezone     string    `json:"timezone"`
	Currency     string    `json:"currency"`
	OwnerID      uint64    `json:"ownerId"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func nullableStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func sanitizeGym(g *repository.Gym) gymJSON {
	return gymJSON{
		ID:           g.ID,
		Name:         g.Name,
		Slug:         g.Slug,
		Description:  nullableStr(g.Description),
		AddressLine1: nullableStr(g.AddressLine1),
		AddressLine2: nullableStr(g.AddressLine2),
		City:         nullableStr(g.City),
		State:        nullableStr(g.State),
		Country:      nullableStr(g.Country),
		PostalCode:   nullableStr(g.PostalCode),
		ContactEmail: nullableStr(g.ContactEmail),
		ContactPhone: nullableStr(g.ContactPhone),
		WebsiteURL:   nullableStr(g.WebsiteURL),
		LogoURL:      nullableStr(g.LogoURL),
		Timezone:     g.Timezone,
		Currency:     g.Currency,
		OwnerID:      g.OwnerID,
		Status:       g.Status,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// nullIfEmpty maps an absent or blank optional field to SQL NULL.
func nullIfEmpty(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func validGymName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 2 && n <= 100
}

// uniqueSlug derives a slug for the name and disambiguates it when a live
// gym (other than excludeID) already holds it.
func (h *GymHandler) uniqueSlug(ctx context.Context, name string, excludeID uint64) (string, error) {
	slug := utils.Slugify(name)
	exists, err := h.Gyms.SlugExists(ctx, slug, excludeID)
	if err != nil {
		return "", err
	}
	if exists {
		slug = utils.UniqueSlugSuffix(slug)
	}
	return slug, nil
}

// canManage implements the mutation gate: the owner always may, and so may
// a user with an active head_coach staff record for this gym.
func (h *GymHandler) canManage(ctx context.Context, g *repository.Gym, userID uint64) (bool, error) {
	if g.OwnerID == userID {
		return true, nil
	}
	return h.Staff.HasActiveRole(ctx, g.ID, userID, repository.RoleHeadCoach)
}

// CreateGym handles POST /api/gyms. Any authenticated user may create a
// gym; they become its owner and its first head coach in one transaction.
func (h *GymHandler) CreateGym(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req gymReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Gym name is required"})
	}
	name := strings.TrimSpace(*req.Name)
	if !validGymName(name) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Gym name must be between 2 and 100 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slug, err := h.uniqueSlug(ctx, name, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create gym"})
	}

	timezone := "UTC"
	if req.Timezone != nil && *req.Timezone != "" {
		timezone = *req.Timezone
	}
	currency := "USD"
	if req.Currency != nil && *req.Currency != "" {
		currency = *req.Currency
	}

	gym := &repository.Gym{
		Name:         name,
		Slug:         slug,
		Description:  nullIfEmpty(req.Description),
		AddressLine1: nullIfEmpty(req.AddressLine1),
		AddressLine2: nullIfEmpty(req.AddressLine2),
		City:         nullIfEmpty(req.City),
		State:        nullIfEmpty(req.State),
		Country:      nullIfEmpty(req.Country),
		PostalCode:   nullIfEmpty(req.PostalCode),
		ContactEmail: nullIfEmpty(req.ContactEmail),
		ContactPhone: nullIfEmpty(req.ContactPhone),
		WebsiteURL:   nullIfEmpty(req.WebsiteURL),
		Timezone:     timezone,
		Currency:     currency,
		OwnerID:      userID,
		Status:       "active",
	}
	if err := h.Gyms.Create(ctx, gym); err != nil {
		if strings.Contains(err.Error(), "1062") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "gym slug already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create gym"})
	}

	_ = queue_publisher.PublishActivity(ctx, queue.ActivityEvent{
		Type:       queue.EventGymCreated,
		UserID:     userID,
		GymID:      gym.ID,
		GymName:    gym.Name,
		GymSlug:    gym.Slug,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Gym created successfully",
		"gym":     sanitizeGym(gym),
	})
}

// GetGym handles GET /api/gyms/:id. Any authenticated user may read a gym;
// the list endpoint is the one scoped to owner/staff. Soft-deleted gyms are
// indistinguishable from missing ones.
func (h *GymHandler) GetGym(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gym, err := h.Gyms.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrGymNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Gym not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"gym": sanitizeGym(gym)})
}

// ListGyms handles GET /api/gyms and returns the caller's gyms: those they
// own plus those where they hold a live staff record, newest first.
func (h *GymHandler) ListGyms(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gyms, err := h.Gyms.ListForUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]gymJSON, 0, len(gyms))
	for _, g := range gyms {
		out = append(out, sanitizeGym(g))
	}
	return c.JSON(http.StatusOK, echo.Map{"gyms": out})
}

// UpdateGym handles PUT /api/gyms/:id with partial update semantics: only
// fields present in the body change. Renaming re-validates the name and
// regenerates the slug, but only when the trimmed name actually differs.
func (h *GymHandler) UpdateGym(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req gymReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gym, err := h.Gyms.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrGymNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Gym not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	ok, err := h.canManage(ctx, gym, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Not authorized to update this gym"})
	}

	upd := repository.GymUpdate{
		Description:  req.Description,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		PostalCode:   req.PostalCode,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		WebsiteURL:   req.WebsiteURL,
		Timezone:     req.Timezone,
		Currency:     req.Currency,
		Status:       req.Status,
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Gym name cannot be empty"})
		}
		if !validGymName(name) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Gym name must be between 2 and 100 characters"})
		}
		upd.Name = &name
		// Slug only moves when the name really changed; a PUT echoing the
		// current name back keeps existing links working.
		if name != gym.Name {
			slug, err := h.uniqueSlug(ctx, name, id)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update gym"})
			}
			upd.Slug = &slug
		}
	}

	updated, err := h.Gyms.Update(ctx, id, upd)
	if err != nil {
		if err == repository.ErrGymNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Gym not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update gym"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Gym updated successfully",
		"gym":     sanitizeGym(updated),
	})
}

// DeleteGym handles DELETE /api/gyms/:id. Only the owner may delete, and
// deletion is soft: the row keeps its staff records and drops out of reads.
func (h *GymHandler) DeleteGym(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gym, err := h.Gyms.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrGymNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Gym not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if gym.OwnerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Only the gym owner can delete the gym"})
	}

	if err := h.Gyms.SoftDelete(ctx, id); err != nil {
		if err == repository.ErrGymNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Gym not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete gym"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Gym deleted successfully"})
}
