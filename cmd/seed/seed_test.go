package main

import (
	"context"
	"testing"
	"time"

	"thientam/internal/user"
	"thientam/pkg/database"
	"thientam/pkg/localday"
	"thientam/pkg/models"
)

func newSeeder(t *testing.T, spread int) *seeder {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := sqlSeeder(db)
	s.spreadDays = spread
	return s
}

func sampleDoc() *database.SeedFile {
	return &database.SeedFile{
		Topics: []database.SeedTopic{
			{Slug: "tu-bi", Name: "Từ Bi", SortOrder: 10},
			{Name: "Vô Thường", SortOrder: 20},
		},
		Readings: []database.SeedReading{
			{Date: "2025-01-01", Title: "Năm mới", Body: "...", TopicSlugs: []string{"tu-bi"}},
			{Title: "Khổ Đế", Body: "..."},
			{Title: "Chính Kiến", Body: "..."},
		},
		BookCategories: []database.SeedBookCategory{
			{Name: "Kinh Điển", NameEn: "Sutras", Icon: "📿", DisplayOrder: 0},
			{Name: "Khác", DisplayOrder: 7},
		},
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := newSeeder(t, 2)
	ctx := context.Background()
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	res, err := s.apply(ctx, sampleDoc(), now)
	if err != nil {
		t.Fatal(err)
	}
	// 1 bài có ngày + 5 ngày xoay vòng
	if res.Topics != 2 || res.BookCategories != 2 || res.Readings != 6 || res.Skipped != 0 {
		t.Fatalf("Unexpected first run %+v", res)
	}

	res, err = s.apply(ctx, sampleDoc(), now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Topics != 0 || res.BookCategories != 0 || res.Readings != 0 || res.Skipped != 10 {
		t.Fatalf("Expected everything skipped, got %+v", res)
	}
}

func TestApplySlugifiesAndDefaults(t *testing.T) {
	s := newSeeder(t, 0)
	ctx := context.Background()
	if _, err := s.apply(ctx, sampleDoc(), time.Now()); err != nil {
		t.Fatal(err)
	}
	tp, err := s.topics.GetBySlug(ctx, "vo-thuong")
	if err != nil {
		t.Fatalf("Expected slugified topic: %v", err)
	}
	if tp.Color == "" || tp.Icon == "" || !tp.IsActive {
		t.Errorf("Expected topic defaults, got %+v", tp)
	}
	bc, err := s.categories.GetByName(ctx, "Khác")
	if err != nil {
		t.Fatal(err)
	}
	if bc.Icon != "📚" || bc.Color != "#8B7355" {
		t.Errorf("Expected category defaults, got %+v", bc)
	}
}

func TestPlanRotatesUndatedReadings(t *testing.T) {
	s := &seeder{spreadDays: 1}
	now := time.Date(2025, time.June, 10, 20, 0, 0, 0, time.UTC) // 03:00 ngày 11 giờ VN
	got, err := s.plan(sampleDoc().Readings, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 readings, got %d", len(got))
	}
	if !got[0].Date.Equal(localday.Date(2025, time.January, 1)) {
		t.Errorf("Expected dated reading kept, got %v", got[0].Date)
	}
	wantDays := []time.Time{
		localday.Date(2025, time.June, 10),
		localday.Date(2025, time.June, 11),
		localday.Date(2025, time.June, 12),
	}
	wantTitles := []string{"Khổ Đế", "Chính Kiến", "Khổ Đế"}
	for i, r := range got[1:] {
		if !r.Date.Equal(wantDays[i]) || r.Title != wantTitles[i] {
			t.Errorf("%d: expected %v %s, got %v %s", i, wantDays[i], wantTitles[i], r.Date, r.Title)
		}
		if r.Source != "Seed" || r.Lang != "vi" {
			t.Errorf("Expected defaults on %+v", r)
		}
	}
}

func TestPlanRejectsBadDate(t *testing.T) {
	s := &seeder{}
	if _, err := s.plan([]database.SeedReading{{Date: "2025-13-01", Title: "x"}}, time.Now()); err == nil {
		t.Fatal("Expected error for invalid date")
	}
}

func TestUpsertAdmin(t *testing.T) {
	s := newSeeder(t, 0)
	ctx := context.Background()

	created, err := s.upsertAdmin(ctx, " Admin@ThienTam.local ", "first-pass", "Admin")
	if err != nil || !created {
		t.Fatalf("Expected created, got %v %v", created, err)
	}
	u, err := s.users.GetByEmail(ctx, "admin@thientam.local")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleAdmin || !u.IsActive {
		t.Errorf("Unexpected admin %+v", u)
	}

	// tài khoản bị hạ quyền rồi seed lại
	role, inactive := models.RoleUser, false
	if _, err := s.users.Update(ctx, u.ID.Hex(), user.Patch{Role: &role, IsActive: &inactive}); err != nil {
		t.Fatal(err)
	}
	created, err = s.upsertAdmin(ctx, "admin@thientam.local", "second-pass", "Admin")
	if err != nil || created {
		t.Fatalf("Expected update, got %v %v", created, err)
	}
	u, _ = s.users.GetByEmail(ctx, "admin@thientam.local")
	if u.Role != models.RoleAdmin || !u.IsActive || !user.CheckPassword(u.PasswordHash, "second-pass") {
		t.Errorf("Expected restored admin with new password, got %+v", u)
	}
}
