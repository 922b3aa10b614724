package app

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbeam/fleetbeam/internal/config"
	"github.com/fleetbeam/fleetbeam/internal/relay"
	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/storage"
	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

type testAPI struct {
	srv   *echo.Echo
	store *storage.DB

	adminToken  string
	driverToken string
	driverID    uint64
	adminID     uint64
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{
		DBFilepath: filepath.Join(t.TempDir(), "db.sqlite"),
		JWTSecret:  "test-secret",
		TokenTTL:   time.Minute,
	}
	store, err := storage.NewDB(t.Context(), cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := sec.HashPassword([]byte("hunter2"))
	require.NoError(t, err)
	require.NoError(t, store.UpsertUser(t.Context(), db.User{
		Name:         "admin",
		PasswordHash: hash,
		Admin:        true,
	}))
	require.NoError(t, store.UpsertUser(t.Context(), db.User{
		Name:         "alice",
		CarNumber:    sql.NullString{Valid: true, String: "TX-1042"},
		PasswordHash: hash,
	}))

	admin, err := store.GetUserByName(t.Context(), "admin")
	require.NoError(t, err)
	driver, err := store.GetUserByName(t.Context(), "alice")
	require.NoError(t, err)

	issuer := sec.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	adminToken, err := issuer.Issue(admin.Name)
	require.NoError(t, err)
	driverToken, err := issuer.Issue(driver.Name)
	require.NoError(t, err)

	rly := relay.New(issuer, store, slog.Default(), nil)
	return &testAPI{
		srv:         New(cfg, slog.Default(), store, issuer, rly, nil),
		store:       store,
		adminToken:  adminToken,
		driverToken: driverToken,
		driverID:    driver.ID,
		adminID:     admin.ID,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/login", "", map[string]string{
		"username": "alice",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	for name, creds := range map[string]map[string]string{
		"wrong password": {"username": "alice", "password": "wrong"},
		"unknown user":   {"username": "nobody", "password": "hunter2"},
	} {
		rec := api.do(t, http.MethodPost, "/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
		body := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "Incorrect username or password", body["message"], name)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/me", api.driverToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[userResource](t, rec)
	assert.Equal(t, api.driverID, body.ID)
	assert.Equal(t, "alice", body.Username)
	require.NotNil(t, body.CarNumber)
	assert.Equal(t, "TX-1042", *body.CarNumber)
	assert.False(t, body.IsAdmin)
	assert.False(t, body.IsPasswordChanged)

	rec = api.do(t, http.MethodGet, "/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody[map[string]string](t, rec)["message"])

	// An undecodable token reads as bad credentials, not a bad token.
	rec = api.do(t, http.MethodGet, "/me", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody[map[string]string](t, rec)["message"])

	issuer := sec.NewTokenIssuer("test-secret", time.Minute)
	subjectless, err := issuer.Issue("")
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, "/me", subjectless, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody[map[string]string](t, rec)["message"])

	ghost, err := issuer.Issue("deleted_user")
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, "/me", ghost, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", decodeBody[map[string]string](t, rec)["message"])
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/change_password", api.driverToken, map[string]string{
		"old_password": "wrong",
		"new_password": "swordfish",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Old password is incorrect", decodeBody[map[string]string](t, rec)["message"])

	rec = api.do(t, http.MethodPost, "/change_password", api.driverToken, map[string]string{
		"old_password": "hunter2",
		"new_password": "swordfish",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password changed successfully.", decodeBody[map[string]string](t, rec)["msg"])

	rec = api.do(t, http.MethodPost, "/login", "", map[string]string{
		"username": "alice",
		"password": "swordfish",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/me", api.driverToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[userResource](t, rec).IsPasswordChanged)
}

func TestUserCRUD(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	t.Run("driver is forbidden", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/users/", api.driverToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Admin privileges required", decodeBody[map[string]string](t, rec)["message"])
	})

	t.Run("create", func(t *testing.T) {
		car := "CA-7"
		rec := api.do(t, http.MethodPost, "/users/", api.adminToken, map[string]any{
			"username":   "bob",
			"car_number": car,
			"password":   "hunter2",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[userResource](t, rec)
		assert.NotZero(t, body.ID)
		assert.Equal(t, "bob", body.Username)
		require.NotNil(t, body.CarNumber)
		assert.Equal(t, car, *body.CarNumber)

		rec = api.do(t, http.MethodPost, "/users/", api.adminToken, map[string]any{
			"username": "bob",
			"password": "hunter2",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already exists", decodeBody[map[string]string](t, rec)["message"])

		rec = api.do(t, http.MethodPost, "/users/", api.adminToken, map[string]any{
			"username": "x",
			"password": "hunter2",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		car := "NV-12"
		rec := api.do(t, http.MethodPut, fmt.Sprintf("/users/%d", api.driverID), api.adminToken, map[string]any{
			"car_number": car,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[userResource](t, rec)
		assert.Equal(t, "alice", body.Username)
		require.NotNil(t, body.CarNumber)
		assert.Equal(t, car, *body.CarNumber)

		rec = api.do(t, http.MethodPut, "/users/999999", api.adminToken, map[string]any{})
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", decodeBody[map[string]string](t, rec)["message"])
	})

	t.Run("cannot update another admin", func(t *testing.T) {
		hash, err := sec.HashPassword([]byte("hunter2"))
		require.NoError(t, err)
		require.NoError(t, api.store.UpsertUser(t.Context(), db.User{
			Name:         "admin2",
			PasswordHash: hash,
			Admin:        true,
		}))
		other, err := api.store.GetUserByName(t.Context(), "admin2")
		require.NoError(t, err)

		rec := api.do(t, http.MethodPut, fmt.Sprintf("/users/%d", other.ID), api.adminToken, map[string]any{
			"is_admin": false,
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Cannot update another admin", decodeBody[map[string]string](t, rec)["message"])

		// An admin may still update itself.
		rec = api.do(t, http.MethodPut, fmt.Sprintf("/users/%d", api.adminID), api.adminToken, map[string]any{})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/users/", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[[]userResource](t, rec)
		names := make([]string, 0, len(body))
		for _, res := range body {
			names = append(names, res.Username)
			assert.False(t, res.IsAdmin)
		}
		assert.Contains(t, names, "alice")
		assert.NotContains(t, names, "admin")

		rec = api.do(t, http.MethodGet, "/users/?after=alice&limit=1", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body = decodeBody[[]userResource](t, rec)
		for _, res := range body {
			assert.Greater(t, res.Username, "alice")
		}

		rec = api.do(t, http.MethodGet, "/users/?limit=0", api.adminToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		hash, err := sec.HashPassword([]byte("hunter2"))
		require.NoError(t, err)
		require.NoError(t, api.store.UpsertUser(t.Context(), db.User{
			Name:         "doomed",
			PasswordHash: hash,
		}))
		doomed, err := api.store.GetUserByName(t.Context(), "doomed")
		require.NoError(t, err)

		rec := api.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", doomed.ID), api.adminToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		_, err = api.store.GetUserByName(t.Context(), "doomed")
		require.ErrorIs(t, err, storage.ErrNotFound)

		rec = api.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", api.adminID), api.adminToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Cannot delete an admin", decodeBody[map[string]string](t, rec)["message"])

		rec = api.do(t, http.MethodDelete, "/users/999999", api.adminToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
