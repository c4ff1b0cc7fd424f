package audio

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"thientam/internal/auth"
	"thientam/internal/httpx"
	"thientam/internal/media"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

type Category struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var Categories = []Category{
	{"sutra", "Kinh Phật", "Buddhist sutras and scriptures"},
	{"mantra", "Chú Phật", "Buddhist mantras and dharani"},
	{"dharma-talk", "Pháp Thoại", "Dharma talks and teachings"},
	{"meditation", "Thiền Định", "Meditation guidance"},
	{"chanting", "Tụng Niệm", "Buddhist chanting"},
	{"music", "Nhạc Phật", "Buddhist music"},
	{"other", "Khác", "Other audio content"},
}

const (
	maxTags        = 10
	popularDefault = 10
	popularMax     = 50
	defaultFormat  = "mp3"
	msgNotFound    = "Audio not found"
)

type Publisher interface {
	Publish(ev models.Event)
}

type Handler struct {
	store  Store
	media  media.Store
	events Publisher
}

// files and events may be nil; uploads then answer 503.
func NewHandler(store Store, files media.Store, events Publisher) *Handler {
	return &Handler{store: store, media: files, events: events}
}

// Register mounts /audio. Mutating routes run behind guard.
func (h *Handler) Register(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.GET("/categories", h.categories)
	rg.GET("/popular", h.popular)
	rg.GET("/:id", h.get)
	rg.POST("/:id/play", h.play)

	admin := rg.Group("", guard...)
	admin.POST("/upload", h.upload)
	admin.POST("/from-url", h.fromURL)
	admin.PUT("/:id", h.update)
	admin.DELETE("/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	p := httpx.ParsePage(c, httpx.DefaultAdminLimit, httpx.MaxLimit)
	sort := httpx.ParseSort(c, SortFields, "createdAt")
	f := Filter{
		Category: strings.TrimSpace(c.Query("category")),
		Tags:     httpx.SplitCSV(c.Query("tags")),
		Search:   strings.TrimSpace(c.Query("search")),
		IsPublic: httpx.QueryBool(c, "isPublic"),
		SortBy:   sort.Field,
		Asc:      sort.Asc,
	}
	audios, total, err := httpx.CountAndFind(c.Request.Context(),
		func(ctx context.Context) (int64, error) { return h.store.Count(ctx, f) },
		func(ctx context.Context) ([]models.Audio, error) { return h.store.Find(ctx, f, p.Skip(), p.Limit) },
	)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch audios", err)
		return
	}
	c.JSON(http.StatusOK, httpx.Envelope("audios", audios, total, p))
}

func (h *Handler) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": Categories})
}

func (h *Handler) popular(c *gin.Context) {
	limit := min(max(httpx.QueryInt(c, "limit", popularDefault), 1), popularMax)
	audios, err := h.store.Popular(c.Request.Context(), limit)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch popular audios", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audios": audios})
}

func (h *Handler) get(c *gin.Context) {
	a, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch audio", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audio": a})
}

func (h *Handler) play(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	a, err := h.store.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	next := a.PlayCount + 1
	if err := h.store.SetPlayCount(ctx, id, next); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to increment play count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Play count incremented", "playCount": next})
}

type uploadForm struct {
	Title       string   `form:"title" binding:"required,max=200"`
	Description string   `form:"description" binding:"max=1000"`
	Artist      string   `form:"artist" binding:"max=100"`
	Category    string   `form:"category" binding:"required,oneof=sutra mantra dharma-talk meditation chanting music other"`
	Tags        string   `form:"tags"`
	Duration    *float64 `form:"duration" binding:"omitempty,min=0"`
	IsPublic    *bool    `form:"isPublic"`
}

func (h *Handler) upload(c *gin.Context) {
	if h.media == nil {
		httpx.Message(c, http.StatusServiceUnavailable, "Media storage is not configured")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		httpx.BadRequest(c, "No audio file uploaded")
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	var req uploadForm
	if err := c.ShouldBind(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	tags := httpx.SplitCSV(req.Tags)
	if len(tags) > maxTags {
		httpx.InvalidFields(c, httpx.FieldError{Field: "tags", Message: "must contain at most 10 items"})
		return
	}
	file, closer, err := media.Open(media.KindAudio, fh)
	if err != nil {
		httpx.InvalidFields(c, httpx.FieldError{Field: "file", Message: err.Error()})
		return
	}
	defer closer.Close()

	obj, err := h.media.Upload(c.Request.Context(), media.KindAudio, file, tags)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to upload audio", err)
		return
	}
	a := &models.Audio{
		Title:         req.Title,
		Description:   req.Description,
		Artist:        req.Artist,
		Category:      req.Category,
		Tags:          tags,
		FilePublicID:  obj.PublicID,
		FileURL:       obj.URL,
		FileSecureURL: obj.SecureURL,
		FileSize:      obj.Bytes,
		Format:        obj.Format,
		IsPublic:      req.IsPublic == nil || *req.IsPublic,
		UploadedBy:    auth.UserID(c),
	}
	if req.Duration != nil {
		a.Duration = *req.Duration
	}
	if err := h.save(c, a); err != nil {
		if derr := h.media.Delete(c.Request.Context(), media.KindAudio, obj.PublicID); derr != nil {
			httpx.Log(c).Warn("discard upload failed", "public_id", obj.PublicID, "err", derr)
		}
		httpx.Fail(c, http.StatusInternalServerError, "Failed to upload audio", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Audio uploaded successfully", "audio": a})
}

// URL is the hosted file; cloudinaryUrl is accepted from older clients.
type fromURLRequest struct {
	URL           string   `json:"url" binding:"omitempty,url"`
	CloudinaryURL string   `json:"cloudinaryUrl" binding:"omitempty,url"`
	Title         string   `json:"title" binding:"required,max=200"`
	Description   string   `json:"description" binding:"max=1000"`
	Artist        string   `json:"artist" binding:"max=100"`
	Category      string   `json:"category" binding:"required,oneof=sutra mantra dharma-talk meditation chanting music other"`
	Tags          []string `json:"tags" binding:"max=10"`
	Duration      float64  `json:"duration" binding:"min=0"`
	FileSize      int64    `json:"fileSize" binding:"min=0"`
	Format        string   `json:"format"`
	IsPublic      *bool    `json:"isPublic"`
}

func (h *Handler) fromURL(c *gin.Context) {
	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	src := req.URL
	if src == "" {
		src = req.CloudinaryURL
	}
	if src == "" {
		httpx.InvalidFields(c, httpx.FieldError{Field: "url", Message: "is required"})
		return
	}
	a := &models.Audio{
		Title:         req.Title,
		Description:   req.Description,
		Artist:        req.Artist,
		Category:      req.Category,
		Tags:          req.Tags,
		FileURL:       src,
		FileSecureURL: media.SecureURL(src),
		FileSize:      req.FileSize,
		Format:        req.Format,
		Duration:      req.Duration,
		IsPublic:      req.IsPublic == nil || *req.IsPublic,
		UploadedBy:    auth.UserID(c),
	}
	if h.media != nil {
		a.FilePublicID = h.media.PublicID(src)
	} else {
		a.FilePublicID = media.PublicIDFromURL(src)
	}
	if err := h.save(c, a); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to create audio from URL", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Audio created successfully from URL", "audio": a})
}

func (h *Handler) save(c *gin.Context, a *models.Audio) error {
	if a.Format == "" {
		a.Format = defaultFormat
	}
	if err := h.store.Create(c.Request.Context(), a); err != nil {
		return err
	}
	httpx.Log(c).Info("audio created", "id", a.ID.Hex(), "title", a.Title)
	if h.events != nil {
		h.events.Publish(models.Event{Type: "audio.created", ID: a.ID.Hex(), Title: a.Title, Timestamp: time.Now().Unix()})
	}
	return nil
}

type updateRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string   `json:"description" binding:"omitempty,max=1000"`
	Artist      *string   `json:"artist" binding:"omitempty,max=100"`
	Category    *string   `json:"category" binding:"omitempty,oneof=sutra mantra dharma-talk meditation chanting music other"`
	Tags        *[]string `json:"tags" binding:"omitempty,max=10"`
	IsPublic    *bool     `json:"isPublic"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	a, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to update audio", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Audio updated successfully", "audio": a})
}

func (h *Handler) remove(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	a, err := h.store.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	if h.media == nil {
		httpx.Log(c).Warn("media storage not configured, stored file left in place", "id", id)
	} else if a.FilePublicID != "" {
		if err := h.media.Delete(ctx, media.KindAudio, a.FilePublicID); err != nil {
			httpx.Fail(c, http.StatusInternalServerError, "Failed to delete audio", err)
			return
		}
	}
	if err := h.store.Delete(ctx, id); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to delete audio", err)
		return
	}
	httpx.Log(c).Info("audio deleted", "id", id)
	c.JSON(http.StatusOK, gin.H{"message": "Audio deleted successfully"})
}
