package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMigrateCreatesTables(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"readings", "topics", "users", "books", "audios", "book_categories"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s: %v", table, err)
		}
	}

	version, dirty, err := Migrate(db)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected version 2 clean, got %d dirty=%v", version, dirty)
	}
}

func TestMapSQLErrorDuplicate(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer db.Close()

	insert := `INSERT INTO topics(id, slug, name, created_ms, updated_ms) VALUES(?,?,?,?,?)`
	if _, err := db.Exec(insert, "a", "tu-bi", "Từ Bi", 1, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = db.Exec(insert, "b", "tu-bi", "Từ Bi", 1, 1)
	if MapSQLError(err) != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestStringsJSONRoundTrip(t *testing.T) {
	if got := StringsJSON(nil); got != "[]" {
		t.Errorf("expected [], got %s", got)
	}
	got := ParseStrings(StringsJSON([]string{"chinh-niem", "tu-bi"}))
	if len(got) != 2 || got[1] != "tu-bi" {
		t.Errorf("unexpected %v", got)
	}
	if got := ParseStrings(""); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMillisKeepsUTC(t *testing.T) {
	in := time.Date(2025, 10, 23, 17, 0, 0, 0, time.UTC)
	if got := FromMillis(Millis(in)); !got.Equal(in) || got.Location() != time.UTC {
		t.Errorf("expected %v, got %v", in, got)
	}
}

func TestLikePatternEscapes(t *testing.T) {
	if got := LikePattern("50%_off"); got != `%50\%\_off%` {
		t.Errorf("unexpected pattern %s", got)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
topics:
  - slug: tu-bi
    name: Từ Bi
readings:
  - date: "2025-10-24"
    title: Lòng từ
    body: Nội dung
    topicSlugs: [tu-bi]
bookCategories:
  - name: Kinh điển
    displayOrder: 1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Topics) != 1 || f.Topics[0].Slug != "tu-bi" {
		t.Errorf("unexpected topics %+v", f.Topics)
	}
	if len(f.Readings) != 1 || f.Readings[0].TopicSlugs[0] != "tu-bi" {
		t.Errorf("unexpected readings %+v", f.Readings)
	}
	if len(f.BookCategories) != 1 || f.BookCategories[0].DisplayOrder != 1 {
		t.Errorf("unexpected categories %+v", f.BookCategories)
	}
}
