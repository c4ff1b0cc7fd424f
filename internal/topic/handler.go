package topic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

const (
	DefaultColor = "#4CAF50"
	DefaultIcon  = "label"

	topTopicsLimit = 10
	countWorkers   = 4
)

// WithCount is a topic annotated with the number of readings that use it.
type WithCount struct {
	models.Topic
	ReadingCount int64 `json:"readingCount"`
}

type Handler struct {
	store    Store
	readings ReadingCounter
}

func NewHandler(store Store, readings ReadingCounter) *Handler {
	return &Handler{store: store, readings: readings}
}

// RegisterPublic mounts GET /topics.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("", h.active)
}

// RegisterAdmin mounts topic management on a gated /admin group.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.GET("/topics", h.list)
	rg.GET("/topics/stats", h.stats)
	rg.GET("/topics/suggest-slug", h.suggestSlug)
	rg.GET("/topics/:id", h.get)
	rg.POST("/topics", h.create)
	rg.PUT("/topics/:id", h.update)
	rg.DELETE("/topics/:id", h.remove)
}

func (h *Handler) active(c *gin.Context) {
	items, err := h.store.Active(c.Request.Context())
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// withCounts đếm bài đọc cho từng chủ đề, song song tối đa countWorkers
func (h *Handler) withCounts(ctx context.Context, topics []models.Topic) ([]WithCount, error) {
	out := make([]WithCount, len(topics))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(countWorkers)
	for i := range topics {
		out[i].Topic = topics[i]
		g.Go(func() error {
			n, err := h.readings.CountByTopic(ctx, topics[i].Slug)
			if err != nil {
				return fmt.Errorf("count readings for %s: %w", topics[i].Slug, err)
			}
			out[i].ReadingCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	search := strings.TrimSpace(c.Query("search"))
	p := httpx.ParsePage(c, httpx.DefaultAdminLimit, httpx.MaxLimit)

	topics, total, err := httpx.CountAndFind(ctx,
		func(ctx context.Context) (int64, error) { return h.store.Count(ctx, search) },
		func(ctx context.Context) ([]models.Topic, error) { return h.store.Find(ctx, search, p.Skip(), p.Limit) },
	)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	items, err := h.withCounts(ctx, topics)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Envelope("items", items, total, p))
}

type topTopic struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	var total, active, inactive int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { total, err = h.store.Count(gctx, ""); return })
	g.Go(func() (err error) { active, err = h.store.CountByActive(gctx, true); return })
	g.Go(func() (err error) { inactive, err = h.store.CountByActive(gctx, false); return })
	if err := g.Wait(); err != nil {
		httpx.ServerError(c, err)
		return
	}

	top, err := h.topTopics(ctx)
	if err != nil {
		// không chặn thống kê chính khi đếm lỗi
		httpx.Log(c).Warn("count topic readings", "err", err)
		top = []topTopic{}
	}

	c.JSON(http.StatusOK, gin.H{
		"totalTopics":    total,
		"activeTopics":   active,
		"inactiveTopics": inactive,
		"topTopics":      top,
	})
}

// topTopics ghép số bài đọc theo slug với tên chủ đề; slug không còn chủ đề thì bỏ qua
func (h *Handler) topTopics(ctx context.Context) ([]topTopic, error) {
	counts, err := h.readings.TopicCounts(ctx)
	if err != nil {
		return nil, err
	}
	top := []topTopic{}
	for _, tc := range counts {
		if len(top) == topTopicsLimit {
			break
		}
		t, err := h.store.GetBySlug(ctx, tc.Topic)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		top = append(top, topTopic{Slug: t.Slug, Name: t.Name, Count: tc.Count})
	}
	return top, nil
}

func (h *Handler) suggestSlug(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		httpx.InvalidFields(c, httpx.FieldError{Field: "name", Message: "is required"})
		return
	}
	slug := Slugify(name)
	_, err := h.store.GetBySlug(c.Request.Context(), slug)
	taken := err == nil
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": slug, "taken": taken})
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	t, err := h.store.Get(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Chủ đề không tìm thấy")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	n, err := h.readings.CountByTopic(ctx, t.Slug)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, WithCount{Topic: *t, ReadingCount: n})
}

type createRequest struct {
	Slug        string `json:"slug" binding:"required,slug"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color" binding:"omitempty,hexcolor6"`
	Icon        string `json:"icon"`
	SortOrder   int    `json:"sortOrder"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetBySlug(ctx, req.Slug); err == nil {
		httpx.Message(c, http.StatusConflict, fmt.Sprintf("Chủ đề với slug %q đã tồn tại", req.Slug))
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}

	t := &models.Topic{
		Slug:        req.Slug,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Color:       req.Color,
		Icon:        strings.TrimSpace(req.Icon),
		IsActive:    true,
		SortOrder:   req.SortOrder,
	}
	if t.Color == "" {
		t.Color = DefaultColor
	}
	if t.Icon == "" {
		t.Icon = DefaultIcon
	}
	if err := h.store.Create(ctx, t); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			httpx.Message(c, http.StatusConflict, "Chủ đề đã tồn tại")
			return
		}
		httpx.ServerError(c, err)
		return
	}
	httpx.Log(c).Info("topic created", "slug", t.Slug)
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo chủ đề thành công", "topic": t})
}

type updateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,hexcolor6"`
	Icon        *string `json:"icon"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   *int    `json:"sortOrder"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	t, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Chủ đề không tìm thấy")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chủ đề đã được cập nhật", "topic": t})
}

func (h *Handler) remove(c *gin.Context) {
	ctx := c.Request.Context()
	t, err := h.store.Get(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Chủ đề không tìm thấy")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}

	n, err := h.readings.CountByTopic(ctx, t.Slug)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	if n > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"message":      fmt.Sprintf("Không thể xóa chủ đề %q vì đang được sử dụng trong %d bài đọc", t.Name, n),
			"readingCount": n,
		})
		return
	}

	if err := h.store.Delete(ctx, t.ID.Hex()); err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	httpx.Log(c).Info("topic deleted", "slug", t.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Chủ đề đã được xóa"})
}
