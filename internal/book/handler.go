package book

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thientam/internal/auth"
	"thientam/internal/httpx"
	"thientam/internal/media"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var Categories = []Category{
	{"sutra", "Kinh điển"},
	{"commentary", "Luận giải"},
	{"biography", "Tiểu sử, truyện"},
	{"practice", "Hướng dẫn tu tập"},
	{"dharma-talk", "Pháp thoại"},
	{"history", "Lịch sử Phật giáo"},
	{"philosophy", "Triết học"},
	{"other", "Khác"},
}

// validCategory accepts a built-in category or the id of a book category.
func validCategory(v string) bool {
	if slices.ContainsFunc(Categories, func(c Category) bool { return c.Value == v }) {
		return true
	}
	return primitive.IsValidObjectID(v)
}

const (
	maxTags         = 15
	popularDefault  = 10
	popularMax      = 50
	msgNotFound     = "Book not found"
	msgNoMedia      = "Media storage is not configured"
	msgNoPDF        = "No PDF file uploaded"
	defaultLanguage = "vi"
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

// Register mounts /books. Mutating routes run behind guard.
func (h *Handler) Register(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.GET("/categories", h.categories)
	rg.GET("/popular", h.popular)
	rg.GET("/:id", h.get)
	rg.POST("/:id/download", h.counter(Downloads))
	rg.POST("/:id/view", h.counter(Views))

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
		Language: strings.TrimSpace(c.Query("bookLanguage")),
		IsPublic: httpx.QueryBool(c, "isPublic"),
		SortBy:   sort.Field,
		Asc:      sort.Asc,
	}
	books, total, err := httpx.CountAndFind(c.Request.Context(),
		func(ctx context.Context) (int64, error) { return h.store.Count(ctx, f) },
		func(ctx context.Context) ([]models.Book, error) { return h.store.Find(ctx, f, p.Skip(), p.Limit) },
	)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch books", err)
		return
	}
	c.JSON(http.StatusOK, httpx.Envelope("books", books, total, p))
}

func (h *Handler) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": Categories})
}

func (h *Handler) popular(c *gin.Context) {
	limit := min(max(httpx.QueryInt(c, "limit", popularDefault), 1), popularMax)
	books, err := h.store.Popular(c.Request.Context(), limit)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch popular books", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to fetch book", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": b})
}

// counter đọc giá trị hiện tại rồi ghi +1, không phải phép tăng nguyên tử
func (h *Handler) counter(which Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		b, err := h.store.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.NotFound(c, msgNotFound)
			return
		}
		if err != nil {
			httpx.ServerError(c, err)
			return
		}
		next := b.DownloadCount + 1
		msg := "Download count incremented"
		if which == Views {
			next = b.ViewCount + 1
			msg = "View count incremented"
		}
		if err := h.store.SetCounter(ctx, id, which, next); err != nil {
			httpx.ServerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, string(which): next})
	}
}

type uploadForm struct {
	Title        string `form:"title" binding:"required,max=300"`
	Author       string `form:"author" binding:"max=200"`
	Translator   string `form:"translator" binding:"max=200"`
	Description  string `form:"description" binding:"max=2000"`
	Category     string `form:"category" binding:"required"`
	Tags         string `form:"tags"`
	BookLanguage string `form:"bookLanguage" binding:"omitempty,oneof=vi en zh pi sa"`
	Publisher    string `form:"publisher" binding:"max=200"`
	PublishYear  *int   `form:"publishYear" binding:"omitempty,min=1000"`
	ISBN         string `form:"isbn" binding:"max=20"`
	PageCount    *int   `form:"pageCount" binding:"omitempty,min=1"`
	IsPublic     *bool  `form:"isPublic"`
}

// checkMeta covers the rules binding tags cannot express.
func checkMeta(category string, tags []string, publishYear *int) []httpx.FieldError {
	var errs []httpx.FieldError
	if !validCategory(category) {
		errs = append(errs, httpx.FieldError{Field: "category", Message: "is not a known category"})
	}
	if len(tags) > maxTags {
		errs = append(errs, httpx.FieldError{Field: "tags", Message: "must contain at most 15 items"})
	}
	if publishYear != nil && *publishYear > time.Now().Year()+1 {
		errs = append(errs, httpx.FieldError{Field: "publishYear", Message: "is in the future"})
	}
	return errs
}

func (h *Handler) upload(c *gin.Context) {
	if h.media == nil {
		httpx.Message(c, http.StatusServiceUnavailable, msgNoMedia)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		httpx.BadRequest(c, msgNoPDF)
		return
	}
	defer form.RemoveAll()
	if len(form.File["pdf"]) == 0 {
		httpx.BadRequest(c, msgNoPDF)
		return
	}

	var req uploadForm
	if err := c.ShouldBind(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	tags := httpx.SplitCSV(req.Tags)
	if errs := checkMeta(req.Category, tags, req.PublishYear); len(errs) > 0 {
		httpx.InvalidFields(c, errs...)
		return
	}

	pdf, pdfCloser, err := media.Open(media.KindPDF, form.File["pdf"][0])
	if err != nil {
		httpx.InvalidFields(c, httpx.FieldError{Field: "pdf", Message: err.Error()})
		return
	}
	defer pdfCloser.Close()

	var (
		cover       media.File
		coverCloser io.Closer
		hasCover    = len(form.File["cover"]) > 0
	)
	if hasCover {
		cover, coverCloser, err = media.Open(media.KindCover, form.File["cover"][0])
		if err != nil {
			httpx.InvalidFields(c, httpx.FieldError{Field: "cover", Message: err.Error()})
			return
		}
		defer coverCloser.Close()
	}

	ctx := c.Request.Context()
	pdfObj, err := h.media.Upload(ctx, media.KindPDF, pdf, tags)
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to upload book", err)
		return
	}
	b := &models.Book{
		Title:         req.Title,
		Author:        req.Author,
		Translator:    req.Translator,
		Description:   req.Description,
		Category:      req.Category,
		Tags:          tags,
		BookLanguage:  req.BookLanguage,
		FilePublicID:  pdfObj.PublicID,
		FileURL:       pdfObj.URL,
		FileSecureURL: pdfObj.SecureURL,
		FileSize:      pdfObj.Bytes,
		PageCount:     req.PageCount,
		Publisher:     req.Publisher,
		PublishYear:   req.PublishYear,
		ISBN:          req.ISBN,
		IsPublic:      req.IsPublic == nil || *req.IsPublic,
		UploadedBy:    auth.UserID(c),
	}
	if hasCover {
		coverObj, err := h.media.Upload(ctx, media.KindCover, cover, []string{"book-" + pdfObj.PublicID})
		if err != nil {
			h.discard(c, media.KindPDF, pdfObj.PublicID)
			httpx.Fail(c, http.StatusInternalServerError, "Failed to upload book", err)
			return
		}
		b.CoverImageURL = coverObj.SecureURL
		b.CoverImagePublicID = coverObj.PublicID
	}
	if err := h.save(c, b); err != nil {
		h.discard(c, media.KindPDF, b.FilePublicID)
		if b.CoverImagePublicID != "" {
			h.discard(c, media.KindCover, b.CoverImagePublicID)
		}
		httpx.Fail(c, http.StatusInternalServerError, "Failed to upload book", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Book uploaded successfully", "book": b})
}

type fromURLRequest struct {
	PDFURL        string   `json:"pdfUrl" binding:"required,url"`
	CoverImageURL string   `json:"coverImageUrl" binding:"omitempty,url"`
	Title         string   `json:"title" binding:"required,max=300"`
	Author        string   `json:"author" binding:"max=200"`
	Translator    string   `json:"translator" binding:"max=200"`
	Description   string   `json:"description" binding:"max=2000"`
	Category      string   `json:"category" binding:"required"`
	Tags          []string `json:"tags"`
	BookLanguage  string   `json:"bookLanguage" binding:"omitempty,oneof=vi en zh pi sa"`
	Publisher     string   `json:"publisher" binding:"max=200"`
	PublishYear   *int     `json:"publishYear" binding:"omitempty,min=1000"`
	ISBN          string   `json:"isbn" binding:"max=20"`
	PageCount     *int     `json:"pageCount" binding:"omitempty,min=1"`
	FileSize      int64    `json:"fileSize" binding:"min=0"`
	IsPublic      *bool    `json:"isPublic"`
}

func (h *Handler) fromURL(c *gin.Context) {
	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	if errs := checkMeta(req.Category, req.Tags, req.PublishYear); len(errs) > 0 {
		httpx.InvalidFields(c, errs...)
		return
	}
	b := &models.Book{
		Title:         req.Title,
		Author:        req.Author,
		Translator:    req.Translator,
		Description:   req.Description,
		Category:      req.Category,
		Tags:          req.Tags,
		BookLanguage:  req.BookLanguage,
		FilePublicID:  h.publicID(req.PDFURL),
		FileURL:       req.PDFURL,
		FileSecureURL: media.SecureURL(req.PDFURL),
		FileSize:      req.FileSize,
		PageCount:     req.PageCount,
		CoverImageURL: req.CoverImageURL,
		Publisher:     req.Publisher,
		PublishYear:   req.PublishYear,
		ISBN:          req.ISBN,
		IsPublic:      req.IsPublic == nil || *req.IsPublic,
		UploadedBy:    auth.UserID(c),
	}
	if req.CoverImageURL != "" {
		b.CoverImagePublicID = h.publicID(req.CoverImageURL)
	}
	if err := h.save(c, b); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to create book from URL", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Book created successfully from URL", "book": b})
}

func (h *Handler) publicID(rawURL string) string {
	if h.media != nil {
		return h.media.PublicID(rawURL)
	}
	return media.PublicIDFromURL(rawURL)
}

// save fills defaults, stores b and announces it.
func (h *Handler) save(c *gin.Context, b *models.Book) error {
	if b.BookLanguage == "" {
		b.BookLanguage = defaultLanguage
	}
	if err := h.store.Create(c.Request.Context(), b); err != nil {
		return err
	}
	httpx.Log(c).Info("book created", "id", b.ID.Hex(), "title", b.Title)
	if h.events != nil {
		h.events.Publish(models.Event{Type: "book.created", ID: b.ID.Hex(), Title: b.Title, Timestamp: time.Now().Unix()})
	}
	return nil
}

// discard removes an orphaned upload; failures are only logged.
func (h *Handler) discard(c *gin.Context, kind media.Kind, publicID string) {
	if err := h.media.Delete(c.Request.Context(), kind, publicID); err != nil {
		httpx.Log(c).Warn("discard upload failed", "kind", kind, "public_id", publicID, "err", err)
	}
}

type updateRequest struct {
	Title        *string   `json:"title" binding:"omitempty,min=1,max=300"`
	Author       *string   `json:"author" binding:"omitempty,max=200"`
	Translator   *string   `json:"translator" binding:"omitempty,max=200"`
	Description  *string   `json:"description" binding:"omitempty,max=2000"`
	Category     *string   `json:"category"`
	Tags         *[]string `json:"tags"`
	BookLanguage *string   `json:"bookLanguage" binding:"omitempty,oneof=vi en zh pi sa"`
	Publisher    *string   `json:"publisher" binding:"omitempty,max=200"`
	PublishYear  *int      `json:"publishYear" binding:"omitempty,min=1000"`
	ISBN         *string   `json:"isbn" binding:"omitempty,max=20"`
	PageCount    *int      `json:"pageCount" binding:"omitempty,min=1"`
	IsPublic     *bool     `json:"isPublic"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	var errs []httpx.FieldError
	if req.Category != nil && !validCategory(*req.Category) {
		errs = append(errs, httpx.FieldError{Field: "category", Message: "is not a known category"})
	}
	if req.Tags != nil && len(*req.Tags) > maxTags {
		errs = append(errs, httpx.FieldError{Field: "tags", Message: "must contain at most 15 items"})
	}
	if len(errs) > 0 {
		httpx.InvalidFields(c, errs...)
		return
	}
	b, err := h.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to update book", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book updated successfully", "book": b})
}

func (h *Handler) remove(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	b, err := h.store.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, msgNotFound)
		return
	}
	if err != nil {
		httpx.ServerError(c, err)
		return
	}

	if h.media == nil {
		httpx.Log(c).Warn("media storage not configured, stored files left in place", "id", id)
	} else {
		if b.FilePublicID != "" {
			if err := h.media.Delete(ctx, media.KindPDF, b.FilePublicID); err != nil {
				httpx.Fail(c, http.StatusInternalServerError, "Failed to delete book", err)
				return
			}
		}
		if b.CoverImagePublicID != "" {
			h.discard(c, media.KindCover, b.CoverImagePublicID)
		}
	}

	if err := h.store.Delete(ctx, id); err != nil {
		httpx.Fail(c, http.StatusInternalServerError, "Failed to delete book", err)
		return
	}
	httpx.Log(c).Info("book deleted", "id", id)
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}
