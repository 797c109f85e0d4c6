// Package tasks loads and validates the (location, category) work list.
package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
	"gopkg.in/yaml.v3"
)

var requiredFields = []string{"latitude", "longitude", "l0_cat", "l1_cat"}

// ErrNotArray is returned when the input document is not a list of tasks.
var ErrNotArray = errors.New("input data must be an array")

// Load reads a task file. Files ending in .yaml or .yml are parsed as YAML;
// anything else as JSON.
func Load(path string) ([]models.ScrapeTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes and validates a JSON task list.
func ParseJSON(data []byte) ([]models.ScrapeTask, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse input json: %w", err)
	}
	return fromDocument(doc)
}

// ParseYAML decodes and validates a YAML task list.
func ParseYAML(data []byte) ([]models.ScrapeTask, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse input yaml: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc any) ([]models.ScrapeTask, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, ErrNotArray
	}

	out := make([]models.ScrapeTask, 0, len(items))
	for i, raw := range items {
		task, err := parseItem(i, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func parseItem(i int, raw any) (models.ScrapeTask, error) {
	item, ok := raw.(map[string]any)
	if !ok {
		return models.ScrapeTask{}, fmt.Errorf("item %d must be an object", i)
	}
	for _, field := range requiredFields {
		if _, ok := item[field]; !ok {
			return models.ScrapeTask{}, fmt.Errorf("missing required field '%s' in item %d", field, i)
		}
	}

	lat, latOK := number(item["latitude"])
	lon, lonOK := number(item["longitude"])
	if !latOK || !lonOK {
		return models.ScrapeTask{}, fmt.Errorf("latitude and longitude must be numbers in item %d", i)
	}

	l0, l0OK := integer(item["l0_cat"])
	l1, l1OK := integer(item["l1_cat"])
	if !l0OK || !l1OK {
		return models.ScrapeTask{}, fmt.Errorf("category IDs must be integers in item %d", i)
	}

	return models.ScrapeTask{
		Latitude:     lat,
		Longitude:    lon,
		L0Cat:        l0,
		L1Cat:        l1,
		LocationName: label(item["location_name"]),
		CategoryName: label(item["category_name"]),
	}, nil
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func integer(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func label(v any) string {
	s, _ := v.(string)
	return s
}
