package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/repository"
	"github.com/rpk6432/library-service/internal/utils"
)

// UserStore is the account persistence the user endpoints need.
type UserStore interface {
	Create(ctx context.Context, u model.User, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, first, last, password string, cost int) error
}

// TokenSettings are the knobs used when issuing access tokens.
type TokenSettings struct {
	Secret     string
	TTLMin     int
	BcryptCost int
}

// UserHandler serves registration, token issue and the "me" endpoints.
type UserHandler struct {
	Users  UserStore
	Tokens TokenSettings
	Log    *slog.Logger
}

func NewUserHandler(users UserStore, tokens TokenSettings, log *slog.Logger) *UserHandler {
	return &UserHandler{Users: users, Tokens: tokens, Log: log}
}

type registerReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=5"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type tokenReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateMeReq struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Password  string  `json:"password" validate:"omitempty,min=5"`
}

type tokenResp struct {
	Access  string    `json:"access"`
	Expires time.Time `json:"expires"`
}

// Register creates a non-staff account.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u := model.User{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	id, err := h.Users.Create(ctx, u, req.Password, h.Tokens.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	created, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Token exchanges email and password for an access token.
func (h *UserHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAccessToken(h.Tokens.Secret, u.ID, u.Email, u.IsStaff, h.Tokens.TTLMin)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Access: tok.Token, Expires: tok.Exp})
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, caller(c).UserID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe partially updates names and password of the authenticated user.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req updateMeReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := caller(c).UserID
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if err := h.Users.UpdateProfile(ctx, id, u.FirstName, u.LastName, req.Password, h.Tokens.BcryptCost); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
