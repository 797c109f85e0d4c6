package parser

import (
	"encoding/json"
	"testing"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
	}{
		{name: "number", input: 49.5, expected: 49.5},
		{name: "json number", input: json.Number("120"), expected: 120},
		{name: "rupee string", input: "₹49", expected: 49},
		{name: "decimal string", input: "MRP ₹12.75 only", expected: 12.75},
		{name: "thousands separator stops the run", input: "₹1,299", expected: 1},
		{name: "repeated dots", input: "1.2.3", expected: 1.2},
		{name: "no digits", input: "free", expected: 0},
		{name: "lone dot", input: ".", expected: 0},
		{name: "dotted currency prefix", input: "Rs. 49", expected: 49},
		{name: "dotted label prefix", input: "MRP. 120", expected: 120},
		{name: "leading decimal point", input: "₹.75", expected: 0.75},
		{name: "trailing dot", input: "₹5. off", expected: 5},
		{name: "object amount", input: map[string]any{"amount": 30.0}, expected: 30},
		{name: "object value before price", input: map[string]any{"value": "₹15", "price": 99.0}, expected: 15},
		{name: "object zero amount falls through", input: map[string]any{"amount": 0.0, "price": 7.0}, expected: 7},
		{name: "empty object", input: map[string]any{}, expected: 0},
		{name: "nil", input: nil, expected: 0},
		{name: "bool", input: true, expected: 0},
		{name: "slice", input: []any{1.0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPrice(tt.input); got != tt.expected {
				t.Fatalf("ExtractPrice(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractPriceIdempotent(t *testing.T) {
	node := map[string]any{"amount": "₹88.50"}
	first := ExtractPrice(node)
	for i := 0; i < 5; i++ {
		if got := ExtractPrice(node); got != first {
			t.Fatalf("extraction %d = %v, want %v", i, got, first)
		}
	}
	if first != 88.5 {
		t.Fatalf("price = %v, want 88.5", first)
	}
}

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "string", input: "https://cdn.test/a.png", expected: "https://cdn.test/a.png"},
		{name: "sequence of strings", input: []any{"https://cdn.test/1.png", "https://cdn.test/2.png"}, expected: "https://cdn.test/1.png"},
		{name: "sequence of objects", input: []any{map[string]any{"src": "https://cdn.test/s.png"}}, expected: "https://cdn.test/s.png"},
		{name: "nested sequence", input: []any{[]any{"https://cdn.test/n.png"}}, expected: "https://cdn.test/n.png"},
		{name: "object url first", input: map[string]any{"image_url": "b", "url": "a"}, expected: "a"},
		{name: "object image_url", input: map[string]any{"image_url": "c"}, expected: "c"},
		{name: "empty sequence", input: []any{}, expected: ""},
		{name: "number", input: 3.0, expected: ""},
		{name: "nil", input: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractImage(tt.input); got != tt.expected {
				t.Fatalf("ExtractImage(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{input: "  abc-1 ", expected: "abc-1"},
		{input: 482113.0, expected: "482113"},
		{input: json.Number("77"), expected: "77"},
		{input: map[string]any{"id": "x"}, expected: ""},
		{input: nil, expected: ""},
	}

	for _, tt := range tests {
		if got := ExtractIdentifier(tt.input); got != tt.expected {
			t.Errorf("ExtractIdentifier(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestInStock(t *testing.T) {
	tests := []struct {
		name     string
		node     map[string]any
		expected bool
	}{
		{name: "zero inventory, no flag", node: map[string]any{"inventory": 0.0}, expected: false},
		{name: "sold out with inventory", node: map[string]any{"inventory": 5.0, "is_sold_out": true}, expected: false},
		{name: "stocked", node: map[string]any{"inventory": 5.0, "is_sold_out": false}, expected: true},
		{name: "missing inventory", node: map[string]any{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InStock(tt.node); got != tt.expected {
				t.Fatalf("InStock(%v) = %v, want %v", tt.node, got, tt.expected)
			}
		})
	}
}

func TestLegacyAvailability(t *testing.T) {
	tests := []struct {
		name     string
		node     map[string]any
		expected bool
	}{
		{name: "no fields defaults to available", node: map[string]any{}, expected: true},
		{name: "in_stock false", node: map[string]any{"in_stock": false, "availability": true}, expected: false},
		{name: "availability true", node: map[string]any{"availability": true}, expected: true},
		{name: "zero quantity", node: map[string]any{"stock_quantity": 0.0}, expected: false},
		{name: "positive quantity", node: map[string]any{"stock_quantity": 3.0}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LegacyAvailability(tt.node); got != tt.expected {
				t.Fatalf("LegacyAvailability(%v) = %v, want %v", tt.node, got, tt.expected)
			}
		})
	}
}

func TestDiscountPercentage(t *testing.T) {
	tests := []struct {
		name     string
		node     map[string]any
		expected int
	}{
		{name: "mrp and offer", node: map[string]any{"mrp": "₹100", "offer_price": "₹75"}, expected: 25},
		{name: "rounds", node: map[string]any{"price": 30.0, "discounted_price": 20.0}, expected: 33},
		{name: "no offer", node: map[string]any{"mrp": 100.0}, expected: 0},
		{name: "offer above list", node: map[string]any{"mrp": 10.0, "offer_price": 12.0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscountPercentage(tt.node); got != tt.expected {
				t.Fatalf("DiscountPercentage(%v) = %d, want %d", tt.node, got, tt.expected)
			}
		})
	}
}
