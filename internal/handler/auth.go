package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // SQL database interactions
	"net/http"     // HTTP status codes and primitives
	"regexp"
	"strings" // string manipulation utilities
	"time"    // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/gym-management/internal/config"     // app configuration
	"github.com/iliyamo/gym-management/internal/queue"      // domain event payloads
	"github.com/iliyamo/gym-management/internal/repository" // DB repositories
	queue_publisher "github.com/iliyamo/gym-management/internal/service"
	"github.com/iliyamo/gym-management/internal/utils" // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// emailRx accepts local@domain.tld without whitespace or extra @ signs.
var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"` // must be absent; roles come from gym_staff only
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type userPart struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

func sanitizeUser(u repository.User) userPart {
	return userPart{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}

// issuePair mints an access/refresh pair for the user and persists the
// refresh token in the ledger. Every successful register/login/refresh goes
// through here, so rotation always leaves exactly one live ledger row per
// session.
func (h *AuthHandler) issuePair(ctx context.Context, userID uint64, email string) (access, refresh utils.SignedToken, err error) {
	access, err = utils.NewAccessToken(h.Cfg.JWTSecret, userID, email, h.Cfg.AccessTTLMin)
	if err != nil {
		return
	}
	refresh, err = utils.NewRefreshToken(h.Cfg.JWTSecret, userID, h.Cfg.RefreshTTLDays)
	if err != nil {
		return
	}
	err = h.Tokens.StoreRefresh(ctx, userID, refresh.Token, refresh.Exp)
	return
}

// Register: validate, create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and password are required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Password must be at least 8 characters"})
	}
	if !emailRx.MatchString(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid email format"})
	}
	// Roles are granted per gym via gym_staff; a registration carrying one
	// is rejected rather than silently ignored.
	if strings.TrimSpace(req.Role) != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Role cannot be set at registration"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.FirstName, req.LastName, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, refresh, err := h.issuePair(ctx, uid, req.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	_ = queue_publisher.PublishActivity(ctx, queue.ActivityEvent{
		Type:       queue.EventMemberRegistered,
		UserID:     uid,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message":      "User registered successfully",
		"user":         sanitizeUser(u),
		"accessToken":  access.Token,
		"refreshToken": refresh.Token,
	})
}

// Login: verify credentials and return a new pair. The error message is the
// same whether the email is unknown or the password is wrong, so responses
// cannot be used to enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	if err := h.Users.TouchLastLogin(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update login failed"})
	}

	access, refresh, err := h.issuePair(ctx, u.ID, u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Login successful",
		"user":         sanitizeUser(u),
		"accessToken":  access.Token,
		"refreshToken": refresh.Token,
	})
}

// Refresh: validate against the ledger, rotate, issue a new pair. A refresh
// token is redeemable exactly once: the ledger row is deleted before new
// tokens are minted, and the affected-row count decides the race when two
// requests present the same token concurrently.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Refresh token is required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The ledger is authoritative: no row (or a stale one) means the token
	// was already rotated, revoked, or has expired.
	userID, err := h.Tokens.ValidateRefresh(ctx, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
	}

	// The embedded signature and expiry must also hold up; a ledger row for
	// a token that no longer verifies is garbage and gets cleaned up.
	if _, err := utils.ParseToken(h.Cfg.JWTSecret, raw); err != nil {
		_, _ = h.Tokens.DeleteRefresh(ctx, raw)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired refresh token"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			_, _ = h.Tokens.DeleteRefresh(ctx, raw)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	// Rotation. Only the request that actually deletes the row may mint new
	// tokens; the loser of a concurrent race gets a 401.
	deleted, err := h.Tokens.DeleteRefresh(ctx, raw)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke refresh failed"})
	}
	if !deleted {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
	}

	access, refresh, err := h.issuePair(ctx, u.ID, u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Token refreshed successfully",
		"accessToken":  access.Token,
		"refreshToken": refresh.Token,
	})
}

// Logout: revoke the presented refresh token. Idempotent by design; an
// unknown, expired or absent token still yields a 200 so clients can always
// clear their session.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	if raw != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		_, _ = h.Tokens.DeleteRefresh(ctx, raw)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me: return the authenticated caller, sanitized.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := c.Get("user").(repository.User)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": sanitizeUser(u)})
}
