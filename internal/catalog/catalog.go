// Package catalog loads the fixed, pre-authored content set. The catalog is
// read once at startup and never mutated afterwards; every consumer gets
// read-only access to the items it holds.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCatalogNotFound is returned when the catalog file does not exist.
var ErrCatalogNotFound = errors.New("catalog: file not found")

// Item is one pre-authored unit of content.
type Item struct {
	Sequence  int
	Title     string
	Tags      []string
	Body      string
	Platforms []Platform
}

// Targets reports whether the item is meant for platform p.
func (it Item) Targets(p Platform) bool {
	for _, candidate := range it.Platforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// WordCount approximates the body length in words.
func (it Item) WordCount() int {
	return len(strings.Fields(it.Body))
}

// Catalog is the ordered, immutable collection of items.
type Catalog struct {
	items []Item
	index map[int]int
}

// rawItem mirrors the on-disk representation. "day" is accepted as a legacy
// alias for "sequence".
type rawItem struct {
	Sequence  int      `json:"sequence" yaml:"sequence"`
	Day       int      `json:"day" yaml:"day"`
	Title     string   `json:"title" yaml:"title"`
	Tags      []string `json:"tags" yaml:"tags"`
	Body      string   `json:"body" yaml:"body"`
	Platforms []string `json:"platforms" yaml:"platforms"`
}

// LoadOptions tunes catalog loading.
type LoadOptions struct {
	// DefaultPlatforms apply to items that do not list their own targets.
	DefaultPlatforms []Platform
}

// Load reads a JSON or YAML catalog from path.
func Load(path string, opts LoadOptions) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var raw []rawItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
		}
	}
	return build(raw, opts)
}

// New builds a catalog from in-memory items, applying the same validation as
// Load.
func New(items []Item) (*Catalog, error) {
	raw := make([]rawItem, 0, len(items))
	for _, it := range items {
		names := make([]string, len(it.Platforms))
		for i, p := range it.Platforms {
			names[i] = string(p)
		}
		raw = append(raw, rawItem{
			Sequence:  it.Sequence,
			Title:     it.Title,
			Tags:      it.Tags,
			Body:      it.Body,
			Platforms: names,
		})
	}
	return build(raw, LoadOptions{})
}

func build(raw []rawItem, opts LoadOptions) (*Catalog, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("catalog: no items")
	}
	items := make([]Item, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for i, r := range raw {
		item, err := r.normalize(opts)
		if err != nil {
			return nil, fmt.Errorf("catalog: item %d: %w", i, err)
		}
		if _, dup := seen[item.Sequence]; dup {
			return nil, fmt.Errorf("catalog: duplicate sequence %d", item.Sequence)
		}
		seen[item.Sequence] = struct{}{}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })
	index := make(map[int]int, len(items))
	for i, it := range items {
		index[it.Sequence] = i
	}
	return &Catalog{items: items, index: index}, nil
}

func (r rawItem) normalize(opts LoadOptions) (Item, error) {
	seq := r.Sequence
	if seq == 0 {
		seq = r.Day
	}
	if seq <= 0 {
		return Item{}, fmt.Errorf("sequence must be positive")
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return Item{}, fmt.Errorf("sequence %d: title is required", seq)
	}
	platforms, err := parsePlatforms(r.Platforms)
	if err != nil {
		return Item{}, fmt.Errorf("sequence %d: %w", seq, err)
	}
	if len(platforms) == 0 {
		platforms = dedupe(opts.DefaultPlatforms)
	}
	if len(platforms) == 0 {
		return Item{}, fmt.Errorf("sequence %d: at least one platform is required", seq)
	}
	return Item{
		Sequence:  seq,
		Title:     title,
		Tags:      cleanTags(r.Tags),
		Body:      r.Body,
		Platforms: platforms,
	}, nil
}

func parsePlatforms(names []string) ([]Platform, error) {
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		p, err := ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return dedupe(out), nil
}

func dedupe(platforms []Platform) []Platform {
	seen := make(map[Platform]struct{}, len(platforms))
	out := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	SortPlatforms(out)
	return out
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Items returns the items in ascending sequence order. The slice is a copy.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Get looks up an item by sequence.
func (c *Catalog) Get(sequence int) (Item, bool) {
	idx, ok := c.index[sequence]
	if !ok {
		return Item{}, false
	}
	return c.items[idx], true
}

// Has reports whether sequence is part of the catalog.
func (c *Catalog) Has(sequence int) bool {
	_, ok := c.index[sequence]
	return ok
}

// Last returns the item with the highest sequence.
func (c *Catalog) Last() Item {
	return c.items[len(c.items)-1]
}
