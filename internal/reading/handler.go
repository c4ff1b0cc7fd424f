package reading

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/localday"
	"thientam/pkg/models"
)

var (
	ymdRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ymRe  = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Publisher receives content events; the websocket hub implements it.
type Publisher interface {
	Publish(ev models.Event)
}

type Handler struct {
	store  Store
	events Publisher
}

// events may be nil.
func NewHandler(store Store, events Publisher) *Handler {
	return &Handler{store: store, events: events}
}

// RegisterPublic mounts the read-only routes on /readings.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/today", h.today)
	rg.GET("/random", h.random)
	rg.GET("/month/:ym", h.month)
	rg.GET("/:ymd", h.byDate)
	rg.GET("", h.list)
}

// RegisterAdmin mounts reading CRUD and stats on an already gated /admin group.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.GET("/readings", h.adminList)
	rg.GET("/readings/:id", h.adminGet)
	rg.POST("/readings", h.create)
	rg.PUT("/readings/:id", h.update)
	rg.DELETE("/readings/:id", h.remove)
	rg.GET("/stats", h.stats)
}

func (h *Handler) today(c *gin.Context) {
	h.day(c, localday.Today())
}

func (h *Handler) byDate(c *gin.Context) {
	raw := c.Param("ymd")
	if !ymdRe.MatchString(raw) {
		httpx.InvalidFields(c, httpx.FieldError{Field: "date", Message: "must be YYYY-MM-DD"})
		return
	}
	day, err := localday.ParseYMD(raw)
	if err != nil {
		httpx.InvalidFields(c, httpx.FieldError{Field: "date", Message: "is not a valid calendar date"})
		return
	}
	h.day(c, day)
}

// day trả 404 khi ngày không có bài đọc nào
func (h *Handler) day(c *gin.Context, day time.Time) {
	items, err := h.store.ByDate(c.Request.Context(), day)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	if len(items) == 0 {
		httpx.NotFound(c, "not_found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) list(c *gin.Context) {
	f := Filter{
		Topic:  strings.TrimSpace(c.Query("topic")),
		Search: strings.TrimSpace(c.Query("query")),
	}
	// tìm kiếm công khai giới hạn 50, duyệt thường 100
	maxLimit := httpx.MaxLimit
	if f.Search != "" {
		maxLimit = httpx.MaxSearchLimit
	}
	h.page(c, f, httpx.ParsePage(c, httpx.DefaultPublicLimit, maxLimit))
}

func (h *Handler) adminList(c *gin.Context) {
	f := Filter{
		Topic:  strings.TrimSpace(c.Query("topic")),
		Search: strings.TrimSpace(c.Query("search")),
	}
	h.page(c, f, httpx.ParsePage(c, httpx.DefaultAdminLimit, httpx.MaxLimit))
}

func (h *Handler) page(c *gin.Context, f Filter, p httpx.Page) {
	ctx := c.Request.Context()
	items, total, err := httpx.CountAndFind(ctx,
		func(ctx context.Context) (int64, error) { return h.store.Count(ctx, f) },
		func(ctx context.Context) ([]models.Reading, error) { return h.store.Find(ctx, f, p.Skip(), p.Limit) },
	)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Envelope("items", items, total, p))
}

func (h *Handler) month(c *gin.Context) {
	raw := c.Param("ym")
	if !ymRe.MatchString(raw) {
		httpx.InvalidFields(c, httpx.FieldError{Field: "month", Message: "must be YYYY-MM"})
		return
	}
	y, m, err := localday.ParseYM(raw)
	if err != nil {
		httpx.InvalidFields(c, httpx.FieldError{Field: "month", Message: "month must be between 01 and 12"})
		return
	}
	from, to := localday.MonthRange(y, m)
	items, err := h.store.Month(c.Request.Context(), from, to)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) random(c *gin.Context) {
	r, err := h.store.Random(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "not_found")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) adminGet(c *gin.Context) {
	r, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Không tìm thấy bài đọc")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type createRequest struct {
	Date       string   `json:"date" binding:"required"`
	Title      string   `json:"title" binding:"required"`
	Body       string   `json:"body" binding:"required"`
	TopicSlugs []string `json:"topicSlugs" binding:"omitempty,dive,slug"`
	Keywords   []string `json:"keywords"`
	Source     string   `json:"source"`
	Lang       string   `json:"lang"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	day, err := localday.Parse(req.Date)
	if err != nil {
		httpx.InvalidFields(c, httpx.FieldError{Field: "date", Message: "must be YYYY-MM-DD or an RFC 3339 timestamp"})
		return
	}

	r := &models.Reading{
		Date:       day,
		Title:      req.Title,
		Body:       req.Body,
		TopicSlugs: req.TopicSlugs,
		Keywords:   req.Keywords,
		Source:     req.Source,
		Lang:       req.Lang,
	}
	if r.Source == "" {
		r.Source = "Admin"
	}
	if r.Lang == "" {
		r.Lang = "vi"
	}
	if err := h.store.Create(c.Request.Context(), r); err != nil {
		httpx.ServerError(c, err)
		return
	}
	httpx.Log(c).Info("reading created", "id", r.ID.Hex(), "date", r.Date)
	h.publish("reading.created", r)
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo bài đọc thành công", "reading": r})
}

type updateRequest struct {
	Title      *string   `json:"title" binding:"omitempty,min=1"`
	Body       *string   `json:"body" binding:"omitempty,min=1"`
	TopicSlugs *[]string `json:"topicSlugs" binding:"omitempty,dive,slug"`
	Keywords   *[]string `json:"keywords"`
	Source     *string   `json:"source"`
	Lang       *string   `json:"lang"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	r, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Không tìm thấy bài đọc")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	h.publish("reading.updated", r)
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật thành công", "reading": r})
}

func (h *Handler) remove(c *gin.Context) {
	r, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Không tìm thấy bài đọc")
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	httpx.Log(c).Info("reading deleted", "id", r.ID.Hex())
	c.JSON(http.StatusOK, gin.H{"message": "Xóa bài đọc thành công", "reading": r})
}

func (h *Handler) publish(kind string, r *models.Reading) {
	if h.events == nil {
		return
	}
	h.events.Publish(models.Event{
		Type:      kind,
		ID:        r.ID.Hex(),
		Title:     r.Title,
		Timestamp: time.Now().Unix(),
	})
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

const (
	recentLimit = 10
	statsMonths = 6
)

func (h *Handler) stats(c *gin.Context) {
	var (
		total  int64
		topics []TopicCount
		recent []models.ReadingSummary
		dates  []time.Time
	)
	now := time.Now()
	from := monthsBack(now, statsMonths-1)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) { total, err = h.store.Count(ctx, Filter{}); return })
	g.Go(func() (err error) { topics, err = h.store.TopicCounts(ctx); return })
	g.Go(func() (err error) { recent, err = h.store.Recent(ctx, recentLimit); return })
	g.Go(func() (err error) { dates, err = h.store.DatesSince(ctx, from); return })
	if err := g.Wait(); err != nil {
		httpx.ServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalReadings":  total,
		"topicCounts":    topics,
		"recentReadings": recent,
		"monthlyStats":   MonthlyCounts(dates, now, statsMonths),
	})
}

// monthsBack returns the start of the local month n months before t's.
func monthsBack(t time.Time, n int) time.Time {
	lt := t.In(localday.Location())
	from, _ := localday.MonthRange(lt.Year(), int(lt.Month()))
	return from.In(localday.Location()).AddDate(0, -n, 0).UTC()
}

// MonthlyCounts buckets dates by local month for the n months ending at
// now's month, newest first. Months without readings report zero.
func MonthlyCounts(dates []time.Time, now time.Time, n int) []MonthCount {
	counts := map[string]int{}
	for _, d := range dates {
		counts[localday.MonthKey(d)]++
	}
	out := make([]MonthCount, 0, n)
	for i := 0; i < n; i++ {
		key := localday.MonthKey(monthsBack(now, i))
		out = append(out, MonthCount{Month: key, Count: counts[key]})
	}
	return out
}
