package app

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetbeam/fleetbeam/internal/relay"
	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/storage"
	"github.com/fleetbeam/fleetbeam/internal/storage/db"
)

const defaultPageSize = 100

type handler struct {
	users  storage.Users
	issuer *sec.TokenIssuer
	relay  *relay.Relay
	logger *slog.Logger
}

func (h handler) register(e *echo.Echo) {
	e.POST("/login", h.login)
	e.POST("/change_password", h.changePassword, h.requireUser)
	e.GET("/me", h.me, h.requireUser)

	users := e.Group("/users", h.requireUser, h.requireAdmin)
	users.POST("/", h.createUser)
	users.GET("/", h.listDrivers)
	users.PUT("/:id", h.updateUser)
	users.DELETE("/:id", h.deleteUser)

	e.GET("/ws", h.realtime)
}

// userResource is the public JSON shape of a user record.
type userResource struct {
	ID                uint64  `json:"id"`
	Username          string  `json:"username"`
	CarNumber         *string `json:"car_number"`
	IsPasswordChanged bool    `json:"is_password_changed"`
	IsAdmin           bool    `json:"is_admin"`
}

func toResource(user db.User) userResource {
	res := userResource{
		ID:                user.ID,
		Username:          user.Name,
		IsPasswordChanged: user.PasswordChanged,
		IsAdmin:           user.Admin,
	}
	if user.CarNumber.Valid {
		res.CarNumber = &user.CarNumber.String
	}
	return res
}

const userContextKey = "fleetbeam.user"

// requireUser authenticates the bearer token and stashes the resolved user in
// the request context.
func (h handler) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request())
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, sec.ErrInvalidCredentials.Error())
		}
		user, err := sec.Authenticate(c.Request().Context(), h.issuer, h.users, token)
		if err != nil {
			var reason sec.Error
			if errors.As(err, &reason) {
				return echo.NewHTTPError(http.StatusUnauthorized, reason.Error())
			}
			return err
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// requireAdmin guards the user management endpoints.
func (h handler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentUser(c).Admin {
			return echo.NewHTTPError(http.StatusForbidden, "Admin privileges required")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) db.User {
	user, _ := c.Get(userContextKey).(db.User)
	return user
}

func bearerToken(req *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := req.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimPrefix(auth, prefix), true
}

func (h handler) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	unauthorized := echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	user, err := h.users.GetUserByName(c.Request().Context(), req.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return unauthorized
	} else if err != nil {
		return err
	}
	if err := sec.ComparePassword([]byte(req.Password), user.PasswordHash); err != nil {
		return unauthorized
	}

	token, err := h.issuer.Issue(user.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h handler) changePassword(c echo.Context) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user := currentUser(c)
	if err := sec.ComparePassword([]byte(req.OldPassword), user.PasswordHash); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Old password is incorrect")
	}
	hash, err := sec.HashPassword([]byte(req.NewPassword))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user.PasswordHash = hash
	user.PasswordChanged = true
	if err := h.users.UpsertUser(c.Request().Context(), user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "Password changed successfully."})
}

func (h handler) me(c echo.Context) error {
	return c.JSON(http.StatusOK, toResource(currentUser(c)))
}

func (h handler) createUser(c echo.Context) error {
	var req struct {
		Username  string  `json:"username"`
		CarNumber *string `json:"car_number"`
		Password  string  `json:"password"`
		IsAdmin   bool    `json:"is_admin"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	hash, err := sec.HashPassword([]byte(req.Password))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user := db.User{
		Name:         req.Username,
		PasswordHash: hash,
		Admin:        req.IsAdmin,
	}
	if req.CarNumber != nil {
		user.CarNumber = sql.NullString{Valid: true, String: *req.CarNumber}
	}

	switch err := h.users.UpsertUser(c.Request().Context(), user); {
	case errors.Is(err, storage.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Username already exists")
	case errors.Is(err, storage.ErrInvalidUsername):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}

	created, err := h.users.GetUserByName(c.Request().Context(), user.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResource(created))
}

func (h handler) updateUser(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req struct {
		Username  *string `json:"username"`
		CarNumber *string `json:"car_number"`
		IsAdmin   *bool   `json:"is_admin"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.GetUser(c.Request().Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}
	// Admins manage drivers; they cannot modify other admin accounts.
	if user.Admin && user.ID != currentUser(c).ID {
		return echo.NewHTTPError(http.StatusForbidden, "Cannot update another admin")
	}

	if req.Username != nil {
		user.Name = *req.Username
	}
	if req.CarNumber != nil {
		user.CarNumber = sql.NullString{Valid: true, String: *req.CarNumber}
	}
	if req.IsAdmin != nil {
		user.Admin = *req.IsAdmin
	}

	switch err := h.users.UpsertUser(c.Request().Context(), user); {
	case errors.Is(err, storage.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Username already exists")
	case errors.Is(err, storage.ErrInvalidUsername):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, toResource(user))
}

func (h handler) listDrivers(c echo.Context) error {
	limit := int32(defaultPageSize)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = int32(parsed)
	}

	users, err := h.users.ListDrivers(c.Request().Context(), c.QueryParam("after"), limit)
	if err != nil {
		return err
	}
	out := make([]userResource, 0, len(users))
	for _, user := range users {
		out = append(out, toResource(user))
	}
	return c.JSON(http.StatusOK, out)
}

func (h handler) deleteUser(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	user, err := h.users.GetUser(c.Request().Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}
	if user.Admin {
		return echo.NewHTTPError(http.StatusForbidden, "Cannot delete an admin")
	}

	if err := h.users.DeleteUser(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handler) realtime(c echo.Context) error {
	return h.relay.Accept(c.Response(), c.Request())
}
