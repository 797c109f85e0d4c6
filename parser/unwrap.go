package parser

import "github.com/aluiziolira/go-scrape-listings/models"

// ProductCardWidget tags the snippet entries that are sellable products.
const ProductCardWidget = "product_card_snippet_type_2"

// Shape identifies which response layout an entry was found in.
type Shape int

const (
	ShapeSnippet Shape = iota
	ShapeLegacyWidget
)

func (s Shape) String() string {
	switch s {
	case ShapeSnippet:
		return "snippet"
	case ShapeLegacyWidget:
		return "legacy_widget"
	default:
		return "unknown"
	}
}

// Entry is a raw product-like node located inside a response.
type Entry struct {
	Shape Shape
	Node  map[string]any
}

// Unwrap returns every product-like node of a response in response order.
// Both known layouts are probed independently and their results
// concatenated, so a response carrying both may yield the same product
// twice; deduplication, if wanted, must key on product identifier.
func Unwrap(raw models.RawResponse) []Entry {
	if len(raw) == 0 {
		return nil
	}
	entries := snippetEntries(raw)
	return append(entries, legacyWidgetEntries(raw)...)
}

// response.snippets[] filtered to product cards.
func snippetEntries(raw models.RawResponse) []Entry {
	response, ok := raw["response"].(map[string]any)
	if !ok {
		return nil
	}
	snippets, ok := response["snippets"].([]any)
	if !ok {
		return nil
	}

	var entries []Entry
	for _, item := range snippets {
		snippet, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if widgetType, _ := snippet["widget_type"].(string); widgetType != ProductCardWidget {
			continue
		}
		data, ok := snippet["data"].(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Shape: ShapeSnippet, Node: data})
	}
	return entries
}

// widgets[].data.products[].
func legacyWidgetEntries(raw models.RawResponse) []Entry {
	widgets, ok := raw["widgets"].([]any)
	if !ok {
		return nil
	}

	var entries []Entry
	for _, item := range widgets {
		widget, ok := item.(map[string]any)
		if !ok {
			continue
		}
		data, ok := widget["data"].(map[string]any)
		if !ok {
			continue
		}
		products, ok := data["products"].([]any)
		if !ok {
			continue
		}
		for _, p := range products {
			if product, ok := p.(map[string]any); ok {
				entries = append(entries, Entry{Shape: ShapeLegacyWidget, Node: product})
			}
		}
	}
	return entries
}

// HasMore reports whether the response explicitly signals another page.
func HasMore(raw models.RawResponse) bool {
	return truthy(raw["has_more"]) || truthy(raw["hasMore"])
}
