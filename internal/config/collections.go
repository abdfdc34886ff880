package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection declares a remote data source served through the cache.
// Either URL (whole collection) or PageURL (remote paging, "{page}" placeholder)
// must be set; both may be.
type Collection struct {
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	PageURL      string        `yaml:"page_url"`
	TotalPages   int           `yaml:"total_pages"`
	SearchFields []string      `yaml:"search_fields"`
	SortKey      string        `yaml:"sort_key"`
	SortDesc     bool          `yaml:"sort_desc"`
	TTL          time.Duration `yaml:"ttl"`
	Tags         []string      `yaml:"tags"`
	Priority     string        `yaml:"priority"`
	MaxSize      int           `yaml:"max_size"`
	PageSize     int           `yaml:"page_size"`
	ItemHeight   float64       `yaml:"item_height"`
	// Refresh is a schedule (@every 5m, @hourly, ...) for re-fetching the
	// collection in the background. Empty disables it.
	Refresh string `yaml:"refresh"`
}

type catalogue struct {
	Collections []Collection `yaml:"collections"`
}

// LoadCollections reads and validates the YAML collection catalogue at path.
// An empty path yields no collections.
func LoadCollections(path string) ([]Collection, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collections file: %w", err)
	}
	return ParseCollections(data)
}

// ParseCollections decodes a YAML catalogue.
func ParseCollections(data []byte) ([]Collection, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse collections: %w", err)
	}

	seen := make(map[string]bool, len(c.Collections))
	for i := range c.Collections {
		col := &c.Collections[i]
		col.Name = strings.TrimSpace(col.Name)
		if col.Name == "" {
			return nil, fmt.Errorf("collection #%d: name is required", i+1)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("collection %q: duplicate name", col.Name)
		}
		seen[col.Name] = true
		if col.URL == "" && col.PageURL == "" {
			return nil, fmt.Errorf("collection %q: url or page_url is required", col.Name)
		}
		if col.PageURL != "" && !strings.Contains(col.PageURL, "{page}") {
			return nil, fmt.Errorf("collection %q: page_url must contain {page}", col.Name)
		}
		if col.TTL < 0 || col.MaxSize < 0 || col.PageSize < 0 || col.TotalPages < 0 {
			return nil, errors.New("collection " + col.Name + ": negative values are not allowed")
		}
	}
	return c.Collections, nil
}
