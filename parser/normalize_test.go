package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

var fixedNow = time.Date(2025, 7, 25, 18, 25, 3, 123456789, time.UTC)

var testMeta = TaskMeta{
	LocationName: "Gurugram Sector 56",
	CategoryName: "Paneer & Tofu",
	Latitude:     28.3897979,
	Longitude:    77.27313339999999,
}

func snippetNode(t *testing.T, doc string) Entry {
	t.Helper()
	var node map[string]any
	if err := json.Unmarshal([]byte(doc), &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	return Entry{Shape: ShapeSnippet, Node: node}
}

func TestNormalizeSnippetCard(t *testing.T) {
	entry := snippetNode(t, `{
		"identity": {"id": "482113"},
		"name": {"text": "Amul Fresh Paneer"},
		"brand_name": {"text": "Amul"},
		"variant": {"text": "200 g"},
		"normal_price": {"text": "₹49"},
		"image": {"url": "https://cdn.test/paneer.png"},
		"inventory": 12,
		"is_sold_out": false
	}`)

	record, ok := Normalize(entry, testMeta, fixedNow)
	if !ok {
		t.Fatalf("expected record")
	}

	if record.ProductID != "482113" || record.ProductName != "Amul Fresh Paneer" {
		t.Fatalf("identity = %q/%q", record.ProductID, record.ProductName)
	}
	if record.Brand != "Amul" || record.Unit != "200 g" {
		t.Fatalf("brand/unit = %q/%q", record.Brand, record.Unit)
	}
	if record.Price != 49 || record.DiscountedPrice != 49 || record.DiscountPercentage != 0 {
		t.Fatalf("prices = %v/%v/%d, want 49/49/0", record.Price, record.DiscountedPrice, record.DiscountPercentage)
	}
	if record.Availability != models.InStock || record.Inventory != 12 {
		t.Fatalf("availability = %q inventory = %d", record.Availability, record.Inventory)
	}
	if record.ImageURL != "https://cdn.test/paneer.png" {
		t.Fatalf("image = %q", record.ImageURL)
	}
	if record.Category != testMeta.CategoryName || record.Subcategory != "" || record.Rating != 0 {
		t.Fatalf("category/subcategory/rating = %q/%q/%v", record.Category, record.Subcategory, record.Rating)
	}
	if record.LocationName != testMeta.LocationName || record.Latitude != testMeta.Latitude || record.Longitude != testMeta.Longitude {
		t.Fatalf("location annotation mismatch: %+v", record)
	}
	if got := record.ScrapedAt.Format(models.ScrapedAtLayout); got != "2025-07-25T18:25:03.123Z" {
		t.Fatalf("scraped_at = %s", got)
	}
}

func TestNormalizeFallbackPaths(t *testing.T) {
	entry := snippetNode(t, `{
		"product_id": 7781,
		"display_name": {"text": "Tofu Classic"},
		"brand": "Urban Platter",
		"unit": "400 g",
		"price": {"amount": 120},
		"media_container": {"items": [{"image": {"url": "https://cdn.test/tofu.png"}}]}
	}`)

	record, ok := Normalize(entry, testMeta, fixedNow)
	if !ok {
		t.Fatalf("expected record")
	}
	if record.ProductID != "7781" || record.ProductName != "Tofu Classic" {
		t.Fatalf("identity = %q/%q", record.ProductID, record.ProductName)
	}
	if record.Brand != "Urban Platter" || record.Unit != "400 g" {
		t.Fatalf("brand/unit = %q/%q", record.Brand, record.Unit)
	}
	if record.Price != 120 {
		t.Fatalf("price = %v, want 120", record.Price)
	}
	if record.ImageURL != "https://cdn.test/tofu.png" {
		t.Fatalf("image = %q", record.ImageURL)
	}
	if record.Availability != models.OutOfStock {
		t.Fatalf("missing inventory should be out of stock, got %q", record.Availability)
	}
}

func TestNormalizeAvailabilityBoundaries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want models.Availability
	}{
		{name: "zero inventory", doc: `{"id": "a", "inventory": 0}`, want: models.OutOfStock},
		{name: "sold out with stock", doc: `{"id": "b", "inventory": 5, "is_sold_out": true}`, want: models.OutOfStock},
		{name: "in stock", doc: `{"id": "c", "inventory": 5}`, want: models.InStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, ok := Normalize(snippetNode(t, tt.doc), testMeta, fixedNow)
			if !ok {
				t.Fatalf("expected record")
			}
			if record.Availability != tt.want {
				t.Fatalf("availability = %q, want %q", record.Availability, tt.want)
			}
		})
	}
}

func TestNormalizeSkipsMalformed(t *testing.T) {
	tests := []struct {
		name string
		node map[string]any
	}{
		{name: "nil node", node: nil},
		{name: "empty node", node: map[string]any{}},
		{name: "no id or name", node: map[string]any{"price": 10.0, "inventory": 3.0}},
		{name: "name object without text", node: map[string]any{"name": map[string]any{"value": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if record, ok := Normalize(Entry{Node: tt.node}, testMeta, fixedNow); ok {
				t.Fatalf("expected skip, got %+v", record)
			}
		})
	}
}

func TestNormalizePriceShapesMatchExtractor(t *testing.T) {
	shapes := []any{49.0, "₹49", map[string]any{"amount": 49.0}}
	for _, shape := range shapes {
		entry := Entry{Shape: ShapeSnippet, Node: map[string]any{"id": "p", "price": shape}}
		record, ok := Normalize(entry, testMeta, fixedNow)
		if !ok {
			t.Fatalf("expected record for %v", shape)
		}
		if record.Price != ExtractPrice(shape) {
			t.Fatalf("price for %v = %v, extractor gives %v", shape, record.Price, ExtractPrice(shape))
		}
	}
}

func TestNormalizeLegacyWidget(t *testing.T) {
	entry := Entry{Shape: ShapeLegacyWidget, Node: map[string]any{
		"product_id":  "L-1",
		"name":        "Masala Tofu",
		"mrp":         "₹200",
		"offer_price": "₹150",
		"in_stock":    true,
		"images":      []any{"https://cdn.test/legacy.png"},
	}}

	record, ok := Normalize(entry, testMeta, fixedNow)
	if !ok {
		t.Fatalf("expected record")
	}
	if record.Price != 200 || record.DiscountedPrice != 150 || record.DiscountPercentage != 25 {
		t.Fatalf("prices = %v/%v/%d, want 200/150/25", record.Price, record.DiscountedPrice, record.DiscountPercentage)
	}
	if record.Availability != models.InStock {
		t.Fatalf("legacy in_stock should be honoured, got %q", record.Availability)
	}
	if record.ImageURL != "https://cdn.test/legacy.png" {
		t.Fatalf("image = %q", record.ImageURL)
	}
}

func TestNormalizeAllDropsMalformed(t *testing.T) {
	entries := []Entry{
		{Shape: ShapeSnippet, Node: map[string]any{"id": "1"}},
		{Shape: ShapeSnippet, Node: map[string]any{"price": 3.0}},
		{Shape: ShapeSnippet, Node: map[string]any{"id": "2"}},
	}
	records := NormalizeAll(entries, testMeta, fixedNow)
	if len(records) != 2 || records[0].ProductID != "1" || records[1].ProductID != "2" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *models.ProductRecord
		wantErr bool
	}{
		{name: "valid", record: &models.ProductRecord{ProductID: "1", Availability: models.InStock}},
		{name: "name only", record: &models.ProductRecord{ProductName: "x", Availability: models.OutOfStock}},
		{name: "nil", record: nil, wantErr: true},
		{name: "no identity", record: &models.ProductRecord{Availability: models.InStock}, wantErr: true},
		{name: "bad availability", record: &models.ProductRecord{ProductID: "1", Availability: "maybe"}, wantErr: true},
		{name: "negative price", record: &models.ProductRecord{ProductID: "1", Price: -1, Availability: models.InStock}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
