package parser

import (
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// TaskMeta annotates every record produced for a task.
type TaskMeta struct {
	LocationName string
	CategoryName string
	Latitude     float64
	Longitude    float64
}

// MetaFor derives the record annotation of a task.
func MetaFor(task models.ScrapeTask) TaskMeta {
	return TaskMeta{
		LocationName: task.LocationName,
		CategoryName: task.CategoryName,
		Latitude:     task.Latitude,
		Longitude:    task.Longitude,
	}
}

// Accessor paths per field, in priority order.
var (
	identifierPaths = [][]string{{"identity", "id"}, {"product_id"}, {"id"}}
	namePaths       = [][]string{{"name", "text"}, {"display_name", "text"}, {"name"}, {"display_name"}}
	brandPaths      = [][]string{{"brand_name", "text"}, {"brand"}}
	unitPaths       = [][]string{{"variant", "text"}, {"unit"}}
)

// Image sources in priority order; each yields a node for ExtractImage.
var imageProbes = []func(node map[string]any) any{
	func(node map[string]any) any { return node["image"] },
	func(node map[string]any) any {
		items, _ := lookup(node, "media_container", "items").([]any)
		if len(items) == 0 {
			return nil
		}
		return lookup(asMap(items[0]), "image")
	},
	func(node map[string]any) any { return node["images"] },
	func(node map[string]any) any { return node["image_url"] },
}

// Normalize converts one raw entry into a ProductRecord. It reports false
// when the entry yields neither an identifier nor a name.
func Normalize(entry Entry, meta TaskMeta, now time.Time) (*models.ProductRecord, bool) {
	node := entry.Node
	if len(node) == 0 {
		return nil, false
	}

	id := firstIdentifier(node, identifierPaths)
	name := firstString(node, namePaths)
	if id == "" && name == "" {
		return nil, false
	}

	price := ExtractPrice(priceNode(node))
	discounted := price
	discount := 0
	if entry.Shape == ShapeLegacyWidget {
		if list, offer := ListAndOfferPrice(node); list > 0 && offer > 0 && list > offer {
			price, discounted = list, offer
			discount = DiscountPercentage(node)
		}
	}

	inventory := ExtractInventory(node["inventory"])
	inStock := InStock(node)
	if entry.Shape == ShapeLegacyWidget && !hasAny(node, "inventory", "is_sold_out") {
		inStock = LegacyAvailability(node)
	}

	return &models.ProductRecord{
		ProductID:          id,
		ProductName:        name,
		Brand:              firstString(node, brandPaths),
		Price:              price,
		DiscountedPrice:    discounted,
		DiscountPercentage: discount,
		Unit:               firstString(node, unitPaths),
		Category:           meta.CategoryName,
		Availability:       models.AvailabilityFrom(inStock),
		ImageURL:           firstImage(node),
		LocationName:       meta.LocationName,
		Latitude:           meta.Latitude,
		Longitude:          meta.Longitude,
		Inventory:          inventory,
		ScrapedAt:          now.UTC().Truncate(time.Millisecond),
	}, true
}

// NormalizeAll normalizes entries in order, silently dropping malformed ones.
func NormalizeAll(entries []Entry, meta TaskMeta, now time.Time) []*models.ProductRecord {
	records := make([]*models.ProductRecord, 0, len(entries))
	for i, entry := range entries {
		record, ok := Normalize(entry, meta, now)
		if !ok {
			slog.Debug("skipping malformed entry",
				slog.Int("index", i),
				slog.String("shape", entry.Shape.String()),
			)
			continue
		}
		records = append(records, record)
	}
	return records
}

// The localized normal_price text wins over a flat price field.
func priceNode(node map[string]any) any {
	if text, ok := lookup(node, "normal_price", "text").(string); ok && text != "" {
		return text
	}
	return node["price"]
}

func firstImage(node map[string]any) string {
	for _, probe := range imageProbes {
		if url := ExtractImage(probe(node)); url != "" {
			return url
		}
	}
	return ""
}

func firstString(node map[string]any, paths [][]string) string {
	for _, path := range paths {
		if s, ok := lookup(node, path...).(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstIdentifier(node map[string]any, paths [][]string) string {
	for _, path := range paths {
		if id := ExtractIdentifier(lookup(node, path...)); id != "" && id != "0" {
			return id
		}
	}
	return ""
}

// lookup walks nested objects and returns nil when any step is missing.
func lookup(node map[string]any, path ...string) any {
	var current any = node
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[key]
	}
	return current
}

func asMap(node any) map[string]any {
	obj, _ := node.(map[string]any)
	return obj
}

func hasAny(node map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := node[key]; ok {
			return true
		}
	}
	return false
}
