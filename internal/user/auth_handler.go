package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thientam/internal/auth"
	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

// AuthHandler serves the admin console login under /auth. Only active
// ADMIN accounts may sign in here.
type AuthHandler struct {
	store   Store
	issuer  *auth.Issuer
	revoker auth.Revoker
}

func NewAuthHandler(store Store, issuer *auth.Issuer, revoker auth.Revoker) *AuthHandler {
	return &AuthHandler{store: store, issuer: issuer, revoker: revoker}
}

func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
	rg.POST("/refresh", h.refresh)
	rg.GET("/me", auth.RequireJWT(h.issuer.AccessSecret, h.revoker), h.me)
}

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	u, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	if u == nil || !u.IsActive || !u.IsAdmin() || !CheckPassword(u.PasswordHash, req.Password) {
		httpx.Log(c).Warn("admin login rejected", "email", req.Email)
		httpx.Message(c, http.StatusUnauthorized, "Email hoặc mật khẩu không đúng")
		return
	}

	access, refresh, err := h.issuer.Pair(u.ID.Hex(), u.Role)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	touchLogin(c, h.store, u)
	c.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": refresh,
		"user": gin.H{
			"id":    u.ID.Hex(),
			"email": u.Email,
			"roles": []string{u.Role},
		},
	})
}

type adminRefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req adminRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	claims, err := h.issuer.ParseRefresh(req.Refresh)
	if err != nil {
		httpx.Message(c, http.StatusUnauthorized, "Token không hợp lệ hoặc hết hạn")
		return
	}
	revoked, err := auth.Revoked(c.Request.Context(), h.revoker, claims)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	if revoked {
		httpx.Message(c, http.StatusUnauthorized, "Token không hợp lệ hoặc hết hạn")
		return
	}
	u, err := h.store.Get(c.Request.Context(), claims.Subject)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	if u == nil || !u.IsActive || !u.IsAdmin() {
		httpx.Message(c, http.StatusUnauthorized, "Token không hợp lệ")
		return
	}
	access, err := h.issuer.Access(u.ID.Hex(), u.Role)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (h *AuthHandler) me(c *gin.Context) {
	u, err := h.store.Get(c.Request.Context(), auth.UserID(c))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	if u == nil || !u.IsActive || !u.IsAdmin() {
		httpx.Message(c, http.StatusUnauthorized, "User không tồn tại")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// touchLogin records lastLoginAt; a failure here does not fail the login.
func touchLogin(c *gin.Context, store Store, u *models.User) {
	now := nowUTC()
	if _, err := store.Update(c.Request.Context(), u.ID.Hex(), Patch{LastLoginAt: &now}); err != nil {
		httpx.Log(c).Warn("record last login", "user", u.ID.Hex(), "err", err)
		return
	}
	u.LastLoginAt = &now
}
