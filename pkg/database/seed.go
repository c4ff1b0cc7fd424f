package database

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type SeedTopic struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
	Icon        string `yaml:"icon"`
	SortOrder   int    `yaml:"sortOrder"`
}

type SeedReading struct {
	Date       string   `yaml:"date"` // 2006-01-02, giờ VN
	Title      string   `yaml:"title"`
	Body       string   `yaml:"body"`
	TopicSlugs []string `yaml:"topicSlugs"`
	Keywords   []string `yaml:"keywords"`
	Source     string   `yaml:"source"`
}

type SeedBookCategory struct {
	Name         string `yaml:"name"`
	NameEn       string `yaml:"nameEn"`
	Description  string `yaml:"description"`
	Icon         string `yaml:"icon"`
	Color        string `yaml:"color"`
	DisplayOrder int    `yaml:"displayOrder"`
}

// SeedFile is the document accepted by cmd/seed. YAML is a superset of
// JSON so either format can be used.
type SeedFile struct {
	Topics         []SeedTopic        `yaml:"topics"`
	Readings       []SeedReading      `yaml:"readings"`
	BookCategories []SeedBookCategory `yaml:"bookCategories"`
}

func LoadSeed(path string) (*SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unmarshal seed file: %w", err)
	}
	return &f, nil
}
