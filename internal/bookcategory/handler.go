package bookcategory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

const (
	DefaultIcon  = "📚"
	DefaultColor = "#8B7355"

	countWorkers = 4
	msgNotFound  = "Không tìm thấy danh mục"
)

type Handler struct {
	store Store
	books BookCounter
}

func NewHandler(store Store, books BookCounter) *Handler {
	return &Handler{store: store, books: books}
}

// Register mounts /book-categories. Mutating routes run behind guard.
func (h *Handler) Register(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.GET("/:id", h.get)

	admin := rg.Group("", guard...)
	admin.POST("", h.create)
	admin.POST("/reorder", h.reorder)
	admin.PUT("/:id", h.update)
	admin.DELETE("/:id", h.remove)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// withBookCounts thay bookCount bằng số sách hiện tại
func (h *Handler) withBookCounts(ctx context.Context, cats []models.BookCategory) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(countWorkers)
	for i := range cats {
		g.Go(func() error {
			n, err := h.books.CountByCategory(ctx, cats[i].ID.Hex())
			if err != nil {
				return fmt.Errorf("count books for %s: %w", cats[i].Name, err)
			}
			cats[i].BookCount = n
			return nil
		})
	}
	return g.Wait()
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	cats, err := h.store.List(ctx, httpx.QueryBool(c, "isActive"))
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi lấy danh sách danh mục", err)
		return
	}
	if err := h.withBookCounts(ctx, cats); err != nil {
		httpx.Log(c).Warn("count category books", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cats, "total": len(cats)})
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	bc, err := h.store.Get(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		fail(c, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi lấy thông tin danh mục", err)
		return
	}
	one := []models.BookCategory{*bc}
	if err := h.withBookCounts(ctx, one); err != nil {
		httpx.Log(c).Warn("count category books", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": one[0]})
}

type createRequest struct {
	Name         string `json:"name" binding:"required,min=1"`
	NameEn       string `json:"nameEn"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	DisplayOrder int    `json:"displayOrder" binding:"min=0"`
	IsActive     *bool  `json:"isActive"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	bc := &models.BookCategory{
		Name:         strings.TrimSpace(req.Name),
		NameEn:       strings.TrimSpace(req.NameEn),
		Description:  strings.TrimSpace(req.Description),
		Icon:         req.Icon,
		Color:        req.Color,
		DisplayOrder: req.DisplayOrder,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if bc.Icon == "" {
		bc.Icon = DefaultIcon
	}
	if bc.Color == "" {
		bc.Color = DefaultColor
	}
	if err := h.store.Create(c.Request.Context(), bc); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			fail(c, http.StatusBadRequest, "Danh mục này đã tồn tại")
			return
		}
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi tạo danh mục", err)
		return
	}
	httpx.Log(c).Info("book category created", "id", bc.ID.Hex(), "name", bc.Name)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Tạo danh mục thành công", "data": bc})
}

type updateRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1"`
	NameEn       *string `json:"nameEn"`
	Description  *string `json:"description"`
	Icon         *string `json:"icon"`
	Color        *string `json:"color"`
	DisplayOrder *int    `json:"displayOrder" binding:"omitempty,min=0"`
	IsActive     *bool   `json:"isActive"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	bc, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
	switch {
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, msgNotFound)
	case errors.Is(err, database.ErrDuplicate):
		fail(c, http.StatusBadRequest, "Tên danh mục này đã tồn tại")
	case err != nil:
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi cập nhật danh mục", err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cập nhật danh mục thành công", "data": bc})
	}
}

func (h *Handler) remove(c *gin.Context) {
	ctx := c.Request.Context()
	bc, err := h.store.Get(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		fail(c, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi xóa danh mục", err)
		return
	}

	n, err := h.books.CountByCategory(ctx, bc.ID.Hex())
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi xóa danh mục", err)
		return
	}
	if n > 0 {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Không thể xóa danh mục này vì còn %d sách đang sử dụng", n))
		return
	}
	if err := h.store.Delete(ctx, bc.ID.Hex()); err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi xóa danh mục", err)
		return
	}
	httpx.Log(c).Info("book category deleted", "id", bc.ID.Hex())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Xóa danh mục thành công"})
}

type reorderRequest struct {
	CategoryIDs []string `json:"categoryIds"`
}

func (h *Handler) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CategoryIDs == nil {
		fail(c, http.StatusBadRequest, "categoryIds phải là một mảng")
		return
	}
	for _, id := range req.CategoryIDs {
		if !primitive.IsValidObjectID(id) {
			httpx.InvalidFields(c, httpx.FieldError{Field: "categoryIds", Message: "contains an invalid id: " + id})
			return
		}
	}
	if err := h.store.Reorder(c.Request.Context(), req.CategoryIDs); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Lỗi khi sắp xếp danh mục", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sắp xếp danh mục thành công"})
}
