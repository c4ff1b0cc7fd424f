package user

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

// AdminHandler manages accounts under the gated /admin group.
type AdminHandler struct {
	store Store
}

func NewAdminHandler(store Store) *AdminHandler {
	return &AdminHandler{store: store}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/users", h.list)
	rg.POST("/users", h.create)
	rg.GET("/users/:id", h.get)
	rg.PUT("/users/:id", h.update)
	rg.PUT("/users/:id/role", h.setRole)
	rg.PUT("/users/:id/status", h.setStatus)
	rg.DELETE("/users/:id", h.remove)
}

const msgUserNotFound = "Không tìm thấy người dùng"

func (h *AdminHandler) list(c *gin.Context) {
	p := httpx.ParsePage(c, httpx.DefaultAdminLimit, httpx.MaxLimit)
	sort := httpx.ParseSort(c, SortFields, "createdAt")
	f := Filter{
		Search:   strings.TrimSpace(c.Query("search")),
		Role:     strings.TrimSpace(c.Query("role")),
		IsActive: httpx.QueryBool(c, "isActive"),
		SortBy:   sort.Field,
		Asc:      sort.Asc,
	}
	users, total, err := httpx.CountAndFind(c.Request.Context(),
		func(ctx context.Context) (int64, error) { return h.store.Count(ctx, f) },
		func(ctx context.Context) ([]models.User, error) { return h.store.Find(ctx, f, p.Skip(), p.Limit) },
	)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Envelope("users", users, total, p))
}

type createUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	IsActive *bool  `json:"isActive"`
}

func (h *AdminHandler) create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetByEmail(ctx, req.Email); err == nil {
		httpx.BadRequest(c, "Email đã được sử dụng")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	u := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         models.RoleUser,
		Preferences:  models.DefaultPreferences(),
		Stats:        models.DefaultStats(),
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if err := h.store.Create(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			httpx.BadRequest(c, "Email đã được sử dụng")
			return
		}
		httpx.ServerError(c, err)
		return
	}
	httpx.Log(c).Info("user created by admin", "user", u.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo người dùng thành công", "user": u})
}

func (h *AdminHandler) get(c *gin.Context) {
	u, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgUserNotFound)
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type updateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=50"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"isActive"`
}

func (h *AdminHandler) update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	patch := Patch{Name: req.Name, IsActive: req.IsActive}

	if req.Email != nil {
		other, err := h.store.GetByEmail(ctx, *req.Email)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			httpx.ServerError(c, err)
			return
		}
		if other != nil && other.ID.Hex() != id {
			httpx.BadRequest(c, "Email đã được sử dụng")
			return
		}
		patch.Email = req.Email
	}
	// mật khẩu rỗng = giữ nguyên
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < 6 {
			httpx.InvalidFields(c, httpx.FieldError{Field: "password", Message: "Mật khẩu phải có ít nhất 6 ký tự"})
			return
		}
		hash, err := HashPassword(*req.Password)
		if err != nil {
			httpx.ServerError(c, err)
			return
		}
		patch.PasswordHash = &hash
	}

	u, err := h.store.Update(ctx, id, patch)
	h.respond(c, u, err, "Cập nhật người dùng thành công")
}

type roleRequest struct {
	Role string `json:"role"`
}

// setRole only accepts USER; promotion to ADMIN goes through the seed tool.
func (h *AdminHandler) setRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Role != models.RoleUser {
		httpx.BadRequest(c, "Role không hợp lệ")
		return
	}
	u, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch{Role: &req.Role})
	h.respond(c, u, err, "Cập nhật vai trò thành công")
}

type statusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h *AdminHandler) setStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "isActive phải là boolean")
		return
	}
	u, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch{IsActive: req.IsActive})
	h.respond(c, u, err, "Cập nhật trạng thái thành công")
}

func (h *AdminHandler) respond(c *gin.Context, u *models.User, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		httpx.NotFound(c, msgUserNotFound)
	case errors.Is(err, database.ErrDuplicate):
		httpx.BadRequest(c, "Email đã được sử dụng")
	case err != nil:
		httpx.ServerError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": msg, "user": u})
	}
}

func (h *AdminHandler) remove(c *gin.Context) {
	err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgUserNotFound)
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Xóa người dùng thành công"})
}
