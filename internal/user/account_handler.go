package user

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"thientam/internal/auth"
	"thientam/internal/httpx"
	"thientam/pkg/database"
	"thientam/pkg/localday"
	"thientam/pkg/models"
)

const historyLimit = 100

func nowUTC() time.Time { return time.Now().UTC() }

// AccountHandler serves end-user accounts under /user-auth.
type AccountHandler struct {
	store   Store
	issuer  *auth.Issuer
	revoker auth.Revoker
}

func NewAccountHandler(store Store, issuer *auth.Issuer, revoker auth.Revoker) *AccountHandler {
	return &AccountHandler{store: store, issuer: issuer, revoker: revoker}
}

func (h *AccountHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/refresh", h.refresh)

	authed := rg.Group("", auth.RequireJWT(h.issuer.AccessSecret, h.revoker))
	authed.GET("/me", h.me)
	authed.PUT("/profile", h.profile)
	authed.POST("/logout", h.logout)
	authed.POST("/reading-stats", h.readingStats)
}

func summary(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID.Hex(),
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	}
}

func (h *AccountHandler) tokens(c *gin.Context, u *models.User) (gin.H, bool) {
	access, refresh, err := h.issuer.Pair(u.ID.Hex(), u.Role)
	if err != nil {
		httpx.ServerError(c, err)
		return nil, false
	}
	return gin.H{"accessToken": access, "refreshToken": refresh}, true
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2,max=50"`
}

func (h *AccountHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()

	emailTaken := func() {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Tài khoản này đã được đăng ký. Vui lòng thử lại!",
			"code":    "EMAIL_EXISTS",
		})
	}
	if _, err := h.store.GetByEmail(ctx, req.Email); err == nil {
		emailTaken()
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
		Name:         req.Name,
		Role:         models.RoleUser,
		Preferences:  models.DefaultPreferences(),
		Stats:        models.DefaultStats(),
		IsActive:     true,
	}
	if err := h.store.Create(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			emailTaken()
			return
		}
		httpx.ServerError(c, err)
		return
	}

	tokens, ok := h.tokens(c, u)
	if !ok {
		return
	}
	touchLogin(c, h.store, u)
	httpx.Log(c).Info("user registered", "user", u.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{
		"message": "Đăng ký thành công",
		"user":    summary(u),
		"tokens":  tokens,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AccountHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	u, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		httpx.ServerError(c, err)
		return
	}
	if u == nil || !u.IsActive || !CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"message": "Email hoặc mật khẩu không đúng",
			"code":    "INVALID_CREDENTIALS",
		})
		return
	}

	tokens, ok := h.tokens(c, u)
	if !ok {
		return
	}
	touchLogin(c, h.store, u)
	c.JSON(http.StatusOK, gin.H{
		"message": "Đăng nhập thành công",
		"user":    summary(u),
		"tokens":  tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AccountHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	claims, err := h.issuer.ParseRefresh(req.RefreshToken)
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
	if u == nil || !u.IsActive {
		httpx.Message(c, http.StatusUnauthorized, "Token không hợp lệ")
		return
	}
	access, err := h.issuer.Access(u.ID.Hex(), u.Role)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access})
}

// current loads the authenticated user or answers 404.
func (h *AccountHandler) current(c *gin.Context) (*models.User, bool) {
	u, err := h.store.Get(c.Request.Context(), auth.UserID(c))
	if errors.Is(err, database.ErrNotFound) {
		httpx.NotFound(c, "Người dùng không tồn tại")
		return nil, false
	}
	if err != nil {
		httpx.ServerError(c, err)
		return nil, false
	}
	return u, true
}

func (h *AccountHandler) me(c *gin.Context) {
	u, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":          u.ID.Hex(),
		"email":       u.Email,
		"name":        u.Name,
		"avatar":      u.Avatar,
		"dateOfBirth": u.DateOfBirth,
		"role":        u.Role,
		"preferences": u.Preferences,
		"stats":       u.Stats,
		"createdAt":   u.CreatedAt,
		"updatedAt":   u.UpdatedAt,
	}})
}

type notificationsRequest struct {
	DailyReading *bool `json:"dailyReading"`
	WeeklyDigest *bool `json:"weeklyDigest"`
	NewContent   *bool `json:"newContent"`
}

type goalsRequest struct {
	DailyTarget  *int `json:"dailyTarget" binding:"omitempty,gte=5,lte=120"`
	WeeklyTarget *int `json:"weeklyTarget" binding:"omitempty,gte=1,lte=7"`
}

type preferencesRequest struct {
	Theme         *string               `json:"theme" binding:"omitempty,oneof=light dark auto"`
	FontSize      *string               `json:"fontSize" binding:"omitempty,oneof=small medium large"`
	LineHeight    *float64              `json:"lineHeight" binding:"omitempty,gte=1.2,lte=2"`
	Notifications *notificationsRequest `json:"notifications"`
	ReadingGoals  *goalsRequest         `json:"readingGoals"`
}

type profileRequest struct {
	Name        *string             `json:"name" binding:"omitempty,min=2,max=50"`
	Avatar      *string             `json:"avatar" binding:"omitempty,url"`
	DateOfBirth *string             `json:"dateOfBirth"`
	Preferences *preferencesRequest `json:"preferences"`
}

// merge applies the non-nil request fields onto p.
func (r *preferencesRequest) merge(p *models.Preferences) {
	if r.Theme != nil {
		p.Theme = *r.Theme
	}
	if r.FontSize != nil {
		p.FontSize = *r.FontSize
	}
	if r.LineHeight != nil {
		p.LineHeight = *r.LineHeight
	}
	if n := r.Notifications; n != nil {
		if n.DailyReading != nil {
			p.Notifications.DailyReading = *n.DailyReading
		}
		if n.WeeklyDigest != nil {
			p.Notifications.WeeklyDigest = *n.WeeklyDigest
		}
		if n.NewContent != nil {
			p.Notifications.NewContent = *n.NewContent
		}
	}
	if g := r.ReadingGoals; g != nil {
		if g.DailyTarget != nil {
			p.ReadingGoals.DailyTarget = *g.DailyTarget
		}
		if g.WeeklyTarget != nil {
			p.ReadingGoals.WeeklyTarget = *g.WeeklyTarget
		}
	}
}

func (h *AccountHandler) profile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	var patch Patch
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := localday.Parse(*req.DateOfBirth)
		if err != nil {
			httpx.InvalidFields(c, httpx.FieldError{Field: "dateOfBirth", Message: "Ngày sinh không hợp lệ"})
			return
		}
		patch.DateOfBirth = &dob
	}

	u, ok := h.current(c)
	if !ok {
		return
	}
	if req.Name != nil && *req.Name != "" {
		patch.Name = req.Name
	}
	if req.Avatar != nil && *req.Avatar != "" {
		patch.Avatar = req.Avatar
	}
	// tài khoản admin không có preferences thì bỏ qua
	if req.Preferences != nil && u.Preferences != nil {
		prefs := *u.Preferences
		req.Preferences.merge(&prefs)
		patch.Preferences = &prefs
	}

	u, err := h.store.Update(c.Request.Context(), u.ID.Hex(), patch)
	if err != nil {
		httpx.ServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Cập nhật thông tin thành công",
		"user": gin.H{
			"id":          u.ID.Hex(),
			"email":       u.Email,
			"name":        u.Name,
			"avatar":      u.Avatar,
			"dateOfBirth": u.DateOfBirth,
			"role":        u.Role,
			"preferences": u.Preferences,
		},
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// logout thu hồi access token hiện tại và refresh token nếu client gửi kèm
func (h *AccountHandler) logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Invalid(c, err)
		return
	}
	ctx := c.Request.Context()
	claims := auth.ClaimsFrom(c)
	if claims == nil || h.revoker == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Đăng xuất thành công"})
		return
	}
	if claims.ID != "" {
		if err := h.revoker.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
			httpx.ServerError(c, err)
			return
		}
	}
	if req.RefreshToken != "" {
		// token sai hoặc của người khác thì bỏ qua
		rc, err := h.issuer.ParseRefresh(req.RefreshToken)
		if err == nil && rc.Subject == claims.Subject && rc.ID != "" {
			if err := h.revoker.Revoke(ctx, rc.ID, rc.TTL()); err != nil {
				httpx.ServerError(c, err)
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đăng xuất thành công"})
}

type readingStatsRequest struct {
	ReadingID string  `json:"readingId" binding:"required"`
	TimeSpent float64 `json:"timeSpent" binding:"required,gt=0"`
}

// RecordReading adds one reading to the stats, keeping the last historyLimit
// history entries.
func RecordReading(s *models.UserStats, readingID string, timeSpent float64, at time.Time) {
	s.TotalReadings++
	s.TotalReadingTime += timeSpent
	s.ReadingHistory = append(s.ReadingHistory, models.ReadingHistoryEntry{
		ReadingID: readingID,
		Date:      at,
		TimeSpent: timeSpent,
	})
	if n := len(s.ReadingHistory); n > historyLimit {
		s.ReadingHistory = append([]models.ReadingHistoryEntry(nil), s.ReadingHistory[n-historyLimit:]...)
	}
}

func (h *AccountHandler) readingStats(c *gin.Context) {
	var req readingStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	u, ok := h.current(c)
	if !ok {
		return
	}
	// chỉ tài khoản USER mới có thống kê
	if u.Role == models.RoleUser && u.Stats != nil {
		stats := *u.Stats
		stats.ReadingHistory = append([]models.ReadingHistoryEntry(nil), u.Stats.ReadingHistory...)
		RecordReading(&stats, req.ReadingID, req.TimeSpent, nowUTC())
		updated, err := h.store.Update(c.Request.Context(), u.ID.Hex(), Patch{Stats: &stats})
		if err != nil {
			httpx.ServerError(c, err)
			return
		}
		u = updated
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Cập nhật thống kê thành công",
		"stats":   u.Stats,
	})
}
