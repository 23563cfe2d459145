package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/config"
	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/repository"
)

// AdminHandler serves the admin-only staff management endpoints.
type AdminHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAdminHandler(cfg config.Config, u *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Users: u}
}

type staffView struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type staffCreateReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type staffUpdateReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  *bool  `json:"is_active"`
	Password  string `json:"password"`
}

// ListStaff returns every non-admin account.
func (h *AdminHandler) ListStaff(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	users, err := h.Users.ListStaff(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	out := make([]staffView, 0, len(users))
	for _, u := range users {
		out = append(out, staffView{
			ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName,
			Role: u.Role, IsActive: u.IsActive, CreatedAt: u.CreatedAt,
		})
	}
	return ok(c, http.StatusOK, "", echo.Map{"staff": out, "count": len(out)})
}

// CreateStaff provisions an account with any known role.
func (h *AdminHandler) CreateStaff(c echo.Context) error {
	var req staffCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email/password required")
	}
	role := ledger.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !ledger.KnownRole(role) {
		return fail(c, http.StatusBadRequest, "unknown role")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.FirstName, req.LastName, string(role), h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return fail(c, http.StatusConflict, "email already exists")
		}
		return fail(c, http.StatusInternalServerError, "create user failed")
	}
	return ok(c, http.StatusCreated, "account created", echo.Map{"id": uid})
}

// UpdateStaff rewrites name, role, active flag and optionally the
// password of an account.
func (h *AdminHandler) UpdateStaff(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	var req staffUpdateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	role := ledger.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !ledger.KnownRole(role) {
		return fail(c, http.StatusBadRequest, "unknown role")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if err := h.Users.UpdateStaff(ctx, id, req.FirstName, req.LastName, string(role), active, req.Password, h.Cfg.BcryptCost); err != nil {
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	return ok(c, http.StatusOK, "account updated", nil)
}

// DeleteStaff removes an account.
func (h *AdminHandler) DeleteStaff(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.DeleteStaff(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return fail(c, http.StatusInternalServerError, "delete failed")
	}
	return ok(c, http.StatusOK, "account deleted", nil)
}
