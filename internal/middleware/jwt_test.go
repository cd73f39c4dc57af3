package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

const testSecret = "test-secret"

func authRequest(token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/gyms", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTAuth(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	users := repository.NewUserRepo(db)

	next := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
	mw := JWTAuth(testSecret, users)(next)

	t.Run("missing header", func(t *testing.T) {
		c, rec := authRequest("")
		require.NoError(t, mw(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		c, rec := authRequest("Token abc")
		require.NoError(t, mw(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		c, rec := authRequest("Bearer not-a-jwt")
		require.NoError(t, mw(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing secret", func(t *testing.T) {
		tok, err := utils.NewAccessToken("other-secret", 3, "a@x.com", 15)
		require.NoError(t, err)

		c, rec := authRequest("Bearer " + tok.Token)
		require.NoError(t, mw(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token of a deleted user", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, 3, "a@x.com", 15)
		require.NoError(t, err)

		mock.ExpectQuery("FROM users WHERE id=").
			WithArgs(uint64(3)).
			WillReturnError(sql.ErrNoRows)

		c, rec := authRequest("Bearer " + tok.Token)
		require.NoError(t, mw(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token attaches the user", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, 3, "a@x.com", 15)
		require.NoError(t, err)

		now := time.Now().UTC()
		mock.ExpectQuery("FROM users WHERE id=").
			WithArgs(uint64(3)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "password_hash", "first_name", "last_name", "status", "last_login_at", "created_at", "updated_at",
			}).AddRow(3, "a@x.com", "hash", "Test", "User", "active", nil, now, now))

		c, rec := authRequest("Bearer " + tok.Token)
		require.NoError(t, mw(c))
		require.Equal(t, http.StatusOK, rec.Code)

		u, ok := c.Get("user").(repository.User)
		require.True(t, ok)
		assert.Equal(t, "a@x.com", u.Email)
		assert.Equal(t, uint64(3), c.Get("user_id"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
