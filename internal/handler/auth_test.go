package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

const testSecret = "test-secret"

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	// Point the event publisher at a closed port so tests never wait on a
	// real broker; publish failures are ignored by the handlers.
	t.Setenv("RABBITMQ_URL", "amqp://127.0.0.1:1")
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuthHandler(testConfig(), repository.NewUserRepo(db), repository.NewTokenRepo(db)), mock
}

func jsonCtx(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "status", "last_login_at", "created_at", "updated_at",
	})
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing email", `{"password":"password123"}`, "Email and password are required"},
		{"missing password", `{"email":"a@x.com"}`, "Email and password are required"},
		{"short password", `{"email":"a@x.com","password":"short"}`, "Password must be at least 8 characters"},
		{"bad email", `{"email":"invalid-email","password":"password123"}`, "Invalid email format"},
		{"role supplied", `{"email":"a@x.com","password":"password123","role":"coach"}`, "Role cannot be set at registration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newAuthHandler(t)
			c, rec := jsonCtx(http.MethodPost, "/api/auth/register", tc.body)
			require.NoError(t, h.Register(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decodeBody(t, rec)["error"])
		})
	}
}

func TestRegisterSuccess(t *testing.T) {
	h, mock := newAuthHandler(t)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("a@x.com", sqlmock.AnyArg(), "Test", "User").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(3)).
		WillReturnRows(userRows().AddRow(3, "a@x.com", "hash", "Test", "User", "active", nil, now, now))

	c, rec := jsonCtx(http.MethodPost, "/api/auth/register",
		`{"email":"A@X.com","password":"password123","firstName":"Test","lastName":"User"}`)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	// The password hash must never leave the server.
	_, leaked := user["password"]
	assert.False(t, leaked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'users.email'"))

	c, rec := jsonCtx(http.MethodPost, "/api/auth/register",
		`{"email":"a@x.com","password":"password123"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, rec)["error"])
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()

	t.Run("success updates last login and issues pair", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery("FROM users WHERE email=").
			WithArgs("a@x.com").
			WillReturnRows(userRows().AddRow(3, "a@x.com", hash, "Test", "User", "active", nil, now, now))
		mock.ExpectExec("UPDATE users SET last_login_at=NOW").
			WithArgs(uint64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WillReturnResult(sqlmock.NewResult(1, 1))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"password123"}`)
		require.NoError(t, h.Login(c))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEmpty(t, body["refreshToken"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery("FROM users WHERE email=").
			WithArgs("a@x.com").
			WillReturnRows(userRows().AddRow(3, "a@x.com", hash, "Test", "User", "active", nil, now, now))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrongwrong"}`)
		require.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		wrongPass := decodeBody(t, rec)["error"]

		mock.ExpectQuery("FROM users WHERE email=").
			WithArgs("ghost@x.com").
			WillReturnError(sql.ErrNoRows)

		c2, rec2 := jsonCtx(http.MethodPost, "/api/auth/login", `{"email":"ghost@x.com","password":"password123"}`)
		require.NoError(t, h.Login(c2))
		assert.Equal(t, http.StatusUnauthorized, rec2.Code)
		assert.Equal(t, wrongPass, decodeBody(t, rec2)["error"])
	})
}

func TestRefresh(t *testing.T) {
	now := time.Now().UTC()

	t.Run("missing token", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{}`)
		require.NoError(t, h.Refresh(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rotation issues a fresh pair", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		refresh, err := utils.NewRefreshToken(testSecret, 3, 7)
		require.NoError(t, err)

		mock.ExpectQuery("FROM refresh_tokens WHERE token=").
			WithArgs(refresh.Token).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(3, now.Add(time.Hour)))
		mock.ExpectQuery("FROM users WHERE id=").
			WithArgs(uint64(3)).
			WillReturnRows(userRows().AddRow(3, "a@x.com", "hash", "Test", "User", "active", nil, now, now))
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs(refresh.Token).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WillReturnResult(sqlmock.NewResult(2, 1))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+refresh.Token+`"}`)
		require.NoError(t, h.Refresh(c))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEqual(t, refresh.Token, body["refreshToken"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token absent from ledger is rejected", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		refresh, err := utils.NewRefreshToken(testSecret, 3, 7)
		require.NoError(t, err)

		mock.ExpectQuery("FROM refresh_tokens WHERE token=").
			WithArgs(refresh.Token).
			WillReturnError(sql.ErrNoRows)

		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+refresh.Token+`"}`)
		require.NoError(t, h.Refresh(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("concurrent loser of the rotation race gets 401", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		refresh, err := utils.NewRefreshToken(testSecret, 3, 7)
		require.NoError(t, err)

		mock.ExpectQuery("FROM refresh_tokens WHERE token=").
			WithArgs(refresh.Token).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(3, now.Add(time.Hour)))
		mock.ExpectQuery("FROM users WHERE id=").
			WithArgs(uint64(3)).
			WillReturnRows(userRows().AddRow(3, "a@x.com", "hash", "Test", "User", "active", nil, now, now))
		// Another request already deleted the row between lookup and delete.
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs(refresh.Token).
			WillReturnResult(sqlmock.NewResult(0, 0))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+refresh.Token+`"}`)
		require.NoError(t, h.Refresh(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger row with a tampered token is cleaned up", func(t *testing.T) {
		h, mock := newAuthHandler(t)

		mock.ExpectQuery("FROM refresh_tokens WHERE token=").
			WithArgs("tampered.token.value").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(3, now.Add(time.Hour)))
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs("tampered.token.value").
			WillReturnResult(sqlmock.NewResult(0, 1))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"tampered.token.value"}`)
		require.NoError(t, h.Refresh(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deleted user invalidates the session", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		refresh, err := utils.NewRefreshToken(testSecret, 3, 7)
		require.NoError(t, err)

		mock.ExpectQuery("FROM refresh_tokens WHERE token=").
			WithArgs(refresh.Token).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(3, now.Add(time.Hour)))
		mock.ExpectQuery("FROM users WHERE id=").
			WithArgs(uint64(3)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs(refresh.Token).
			WillReturnResult(sqlmock.NewResult(0, 1))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+refresh.Token+`"}`)
		require.NoError(t, h.Refresh(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the presented token", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs("some.refresh.token").
			WillReturnResult(sqlmock.NewResult(0, 1))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/logout", `{"refreshToken":"some.refresh.token"}`)
		require.NoError(t, h.Logout(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("idempotent without a token", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, rec := jsonCtx(http.MethodPost, "/api/auth/logout", `{}`)
		require.NoError(t, h.Logout(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("idempotent for unknown tokens", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectExec("DELETE FROM refresh_tokens").
			WithArgs("already.gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		c, rec := jsonCtx(http.MethodPost, "/api/auth/logout", `{"refreshToken":"already.gone"}`)
		require.NoError(t, h.Logout(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMe(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, rec := jsonCtx(http.MethodGet, "/api/auth/me", "")
		c.Set("user", repository.User{ID: 3, Email: "a@x.com", FirstName: "Test"})
		require.NoError(t, h.Me(c))
		require.Equal(t, http.StatusOK, rec.Code)
		user := decodeBody(t, rec)["user"].(map[string]any)
		assert.Equal(t, "a@x.com", user["email"])
	})

	t.Run("no identity in context", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, rec := jsonCtx(http.MethodGet, "/api/auth/me", "")
		require.NoError(t, h.Me(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
