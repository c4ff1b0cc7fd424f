package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// readings: date luôn là 00:00 giờ VN (UTC instant)
type Reading struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Date       time.Time          `bson:"date" json:"date"`
	Title      string             `bson:"title" json:"title"`
	Body       string             `bson:"body" json:"body"`
	TopicSlugs []string           `bson:"topicSlugs" json:"topicSlugs"`
	Keywords   []string           `bson:"keywords" json:"keywords"`
	Source     string             `bson:"source,omitempty" json:"source,omitempty"`
	Lang       string             `bson:"lang,omitempty" json:"lang,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ReadingSummary is the projection used by month listings and admin stats.
type ReadingSummary struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Date       time.Time          `bson:"date" json:"date"`
	Title      string             `bson:"title" json:"title"`
	TopicSlugs []string           `bson:"topicSlugs" json:"topicSlugs"`
}

type Topic struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Slug        string             `bson:"slug" json:"slug"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Color       string             `bson:"color" json:"color"`
	Icon        string             `bson:"icon" json:"icon"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	SortOrder   int                `bson:"sortOrder" json:"sortOrder"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Notifications struct {
	DailyReading bool `bson:"dailyReading" json:"dailyReading"`
	WeeklyDigest bool `bson:"weeklyDigest" json:"weeklyDigest"`
	NewContent   bool `bson:"newContent" json:"newContent"`
}

type ReadingGoals struct {
	DailyTarget  int `bson:"dailyTarget" json:"dailyTarget"`   // phút / ngày
	WeeklyTarget int `bson:"weeklyTarget" json:"weeklyTarget"` // ngày / tuần
}

type Preferences struct {
	Theme         string        `bson:"theme" json:"theme"`
	FontSize      string        `bson:"fontSize" json:"fontSize"`
	LineHeight    float64       `bson:"lineHeight" json:"lineHeight"`
	Notifications Notifications `bson:"notifications" json:"notifications"`
	ReadingGoals  ReadingGoals  `bson:"readingGoals" json:"readingGoals"`
}

type ReadingHistoryEntry struct {
	ReadingID string    `bson:"readingId" json:"readingId"`
	Date      time.Time `bson:"date" json:"date"`
	TimeSpent float64   `bson:"timeSpent" json:"timeSpent"`
}

type UserStats struct {
	TotalReadings    int                   `bson:"totalReadings" json:"totalReadings"`
	TotalReadingTime float64               `bson:"totalReadingTime" json:"totalReadingTime"`
	StreakDays       int                   `bson:"streakDays" json:"streakDays"`
	LongestStreak    int                   `bson:"longestStreak" json:"longestStreak"`
	FavoriteTopics   []string              `bson:"favoriteTopics" json:"favoriteTopics"`
	ReadingHistory   []ReadingHistoryEntry `bson:"readingHistory" json:"readingHistory"`
}

// User gộp cả tài khoản admin và người dùng thường, phân biệt bằng Role.
type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email           string             `bson:"email" json:"email"`
	PasswordHash    string             `bson:"passwordHash" json:"-"`
	Name            string             `bson:"name" json:"name"`
	Avatar          *string            `bson:"avatar" json:"avatar"`
	DateOfBirth     *time.Time         `bson:"dateOfBirth" json:"dateOfBirth"`
	Role            string             `bson:"role" json:"role"`
	Preferences     *Preferences       `bson:"preferences,omitempty" json:"preferences,omitempty"`
	Stats           *UserStats         `bson:"stats,omitempty" json:"stats,omitempty"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	IsEmailVerified bool               `bson:"isEmailVerified" json:"isEmailVerified"`
	LastLoginAt     *time.Time         `bson:"lastLoginAt" json:"lastLoginAt"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// DefaultPreferences is assigned to new USER accounts.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Theme:      "auto",
		FontSize:   "medium",
		LineHeight: 1.6,
		Notifications: Notifications{
			DailyReading: true,
			WeeklyDigest: false,
			NewContent:   true,
		},
		ReadingGoals: ReadingGoals{DailyTarget: 15, WeeklyTarget: 5},
	}
}

func DefaultStats() *UserStats {
	return &UserStats{
		FavoriteTopics: []string{},
		ReadingHistory: []ReadingHistoryEntry{},
	}
}

// File fields point at the media backend (Cloudinary public id or object key).
type Book struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title              string             `bson:"title" json:"title"`
	Author             string             `bson:"author,omitempty" json:"author,omitempty"`
	Translator         string             `bson:"translator,omitempty" json:"translator,omitempty"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	Category           string             `bson:"category" json:"category"`
	Tags               []string           `bson:"tags" json:"tags"`
	BookLanguage       string             `bson:"bookLanguage" json:"bookLanguage"`
	FilePublicID       string             `bson:"filePublicId" json:"filePublicId"`
	FileURL            string             `bson:"fileUrl" json:"fileUrl"`
	FileSecureURL      string             `bson:"fileSecureUrl" json:"fileSecureUrl"`
	FileSize           int64              `bson:"fileSize" json:"fileSize"`
	PageCount          *int               `bson:"pageCount,omitempty" json:"pageCount,omitempty"`
	CoverImageURL      string             `bson:"coverImageUrl,omitempty" json:"coverImageUrl,omitempty"`
	CoverImagePublicID string             `bson:"coverImagePublicId,omitempty" json:"coverImagePublicId,omitempty"`
	Publisher          string             `bson:"publisher,omitempty" json:"publisher,omitempty"`
	PublishYear        *int               `bson:"publishYear,omitempty" json:"publishYear,omitempty"`
	ISBN               string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	DownloadCount      int64              `bson:"downloadCount" json:"downloadCount"`
	ViewCount          int64              `bson:"viewCount" json:"viewCount"`
	IsPublic           bool               `bson:"isPublic" json:"isPublic"`
	UploadedBy         string             `bson:"uploadedBy,omitempty" json:"uploadedBy,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Audio struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Artist        string             `bson:"artist,omitempty" json:"artist,omitempty"`
	Duration      float64            `bson:"duration" json:"duration"` // giây
	Category      string             `bson:"category" json:"category"`
	Tags          []string           `bson:"tags" json:"tags"`
	FilePublicID  string             `bson:"filePublicId" json:"filePublicId"`
	FileURL       string             `bson:"fileUrl" json:"fileUrl"`
	FileSecureURL string             `bson:"fileSecureUrl" json:"fileSecureUrl"`
	FileSize      int64              `bson:"fileSize" json:"fileSize"`
	Format        string             `bson:"format" json:"format"`
	UploadedBy    string             `bson:"uploadedBy,omitempty" json:"uploadedBy,omitempty"`
	PlayCount     int64              `bson:"playCount" json:"playCount"`
	IsPublic      bool               `bson:"isPublic" json:"isPublic"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type BookCategory struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	NameEn       string             `bson:"nameEn,omitempty" json:"nameEn,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Icon         string             `bson:"icon" json:"icon"`
	Color        string             `bson:"color" json:"color"`
	DisplayOrder int                `bson:"displayOrder" json:"displayOrder"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	BookCount    int64              `bson:"bookCount" json:"bookCount"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Event is pushed to websocket subscribers.
type Event struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
