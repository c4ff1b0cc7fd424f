package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"thientam/internal/bookcategory"
	"thientam/internal/logger"
	"thientam/internal/reading"
	"thientam/internal/topic"
	"thientam/internal/user"
	"thientam/pkg/database"
	"thientam/pkg/localday"
	"thientam/pkg/models"
)

type seeder struct {
	topics     topic.Store
	readings   reading.Store
	categories bookcategory.Store
	users      user.Store

	spreadDays int
	log        *logger.Logger
}

type result struct {
	Topics         int
	Readings       int
	BookCategories int
	Skipped        int
}

// apply is idempotent: topics match on slug, categories on name and
// readings on (date, title).
func (s *seeder) apply(ctx context.Context, doc *database.SeedFile, now time.Time) (result, error) {
	if s.log == nil {
		s.log = logger.Nop()
	}
	var res result

	for _, st := range doc.Topics {
		slug := strings.TrimSpace(st.Slug)
		if slug == "" {
			slug = topic.Slugify(st.Name)
		}
		t := &models.Topic{
			Slug:        slug,
			Name:        strings.TrimSpace(st.Name),
			Description: st.Description,
			Color:       st.Color,
			Icon:        st.Icon,
			IsActive:    true,
			SortOrder:   st.SortOrder,
		}
		if t.Color == "" {
			t.Color = topic.DefaultColor
		}
		if t.Icon == "" {
			t.Icon = topic.DefaultIcon
		}
		err := s.topics.Create(ctx, t)
		switch {
		case errors.Is(err, database.ErrDuplicate):
			s.log.Debug("topic exists", "slug", slug)
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("topic %s: %w", slug, err)
		default:
			res.Topics++
		}
	}

	for _, sc := range doc.BookCategories {
		name := strings.TrimSpace(sc.Name)
		if _, err := s.categories.GetByName(ctx, name); err == nil {
			s.log.Debug("book category exists", "name", name)
			res.Skipped++
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return res, fmt.Errorf("book category %s: %w", name, err)
		}
		bc := &models.BookCategory{
			Name:         name,
			NameEn:       sc.NameEn,
			Description:  sc.Description,
			Icon:         sc.Icon,
			Color:        sc.Color,
			DisplayOrder: sc.DisplayOrder,
			IsActive:     true,
		}
		if bc.Icon == "" {
			bc.Icon = bookcategory.DefaultIcon
		}
		if bc.Color == "" {
			bc.Color = bookcategory.DefaultColor
		}
		if err := s.categories.Create(ctx, bc); err != nil {
			return res, fmt.Errorf("book category %s: %w", name, err)
		}
		res.BookCategories++
	}

	planned, err := s.plan(doc.Readings, now)
	if err != nil {
		return res, err
	}
	for _, r := range planned {
		existing, err := s.readings.ByDate(ctx, r.Date)
		if err != nil {
			return res, err
		}
		if hasTitle(existing, r.Title) {
			res.Skipped++
			continue
		}
		if err := s.readings.Create(ctx, r); err != nil {
			return res, fmt.Errorf("reading %q: %w", r.Title, err)
		}
		res.Readings++
	}
	return res, nil
}

// plan giữ nguyên ngày của bài có date; bài không có date được xoay vòng
// qua các ngày từ today-spread tới today+spread
func (s *seeder) plan(items []database.SeedReading, now time.Time) ([]*models.Reading, error) {
	var (
		out       []*models.Reading
		templates []database.SeedReading
	)
	for _, it := range items {
		if strings.TrimSpace(it.Date) == "" {
			templates = append(templates, it)
			continue
		}
		day, err := localday.ParseYMD(it.Date)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", it.Title, err)
		}
		out = append(out, toReading(it, day))
	}
	if len(templates) == 0 || s.spreadDays < 0 {
		return out, nil
	}
	today := localday.StartOfDay(now)
	for i := -s.spreadDays; i <= s.spreadDays; i++ {
		tpl := templates[(i+s.spreadDays)%len(templates)]
		day := localday.StartOfDay(today.In(localday.Location()).AddDate(0, 0, i))
		out = append(out, toReading(tpl, day))
	}
	return out, nil
}

func toReading(it database.SeedReading, day time.Time) *models.Reading {
	r := &models.Reading{
		Date:       day,
		Title:      strings.TrimSpace(it.Title),
		Body:       strings.TrimSpace(it.Body),
		TopicSlugs: it.TopicSlugs,
		Keywords:   it.Keywords,
		Source:     it.Source,
		Lang:       "vi",
	}
	if r.TopicSlugs == nil {
		r.TopicSlugs = []string{}
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	if r.Source == "" {
		r.Source = "Seed"
	}
	return r
}

func hasTitle(list []models.Reading, title string) bool {
	for _, r := range list {
		if r.Title == title {
			return true
		}
	}
	return false
}

// upsertAdmin creates the admin account or resets its password, role and
// active flag. It reports whether a new account was created.
func (s *seeder) upsertAdmin(ctx context.Context, email, password, name string) (bool, error) {
	email = user.NormalizeEmail(email)
	hash, err := user.HashPassword(password)
	if err != nil {
		return false, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		u := &models.User{
			Email:        email,
			PasswordHash: hash,
			Name:         name,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return false, fmt.Errorf("create admin: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	role, active := models.RoleAdmin, true
	_, err = s.users.Update(ctx, existing.ID.Hex(), user.Patch{
		PasswordHash: &hash,
		Role:         &role,
		IsActive:     &active,
	})
	if err != nil {
		return false, fmt.Errorf("update admin: %w", err)
	}
	return false, nil
}
