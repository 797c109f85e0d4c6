package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Each field is probed through an ordered strategy table; the first strategy
// that recognises the node's shape wins. Strategies never panic: an
// unrecognised shape simply reports ok=false.

type priceStrategy func(node any) (float64, bool)

type stringStrategy func(node any) (string, bool)

var priceStrategies []priceStrategy

var imageStrategies []stringStrategy

func init() {
	priceStrategies = []priceStrategy{priceFromNumber, priceFromString, priceFromObject}
	imageStrategies = []stringStrategy{imageFromString, imageFromSequence, imageFromObject}
}

// numericRun needs at least one digit so a prefix like "Rs." is skipped.
var numericRun = regexp.MustCompile(`\d+(?:\.\d*)?|\.\d+`)

// ExtractPrice reads a price from a number, a display string ("₹49") or an
// object carrying amount/value/price. Unknown shapes yield 0.
func ExtractPrice(node any) float64 {
	for _, strategy := range priceStrategies {
		if price, ok := strategy(node); ok {
			return price
		}
	}
	return 0
}

func priceFromNumber(node any) (float64, bool) {
	return asNumber(node)
}

func priceFromString(node any) (float64, bool) {
	s, ok := node.(string)
	if !ok {
		return 0, false
	}
	return parseLeadingNumber(s), true
}

func priceFromObject(node any) (float64, bool) {
	obj, ok := node.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"amount", "value", "price"} {
		value, present := obj[key]
		if !present {
			continue
		}
		// Nested objects are not followed; only scalar amounts count.
		if n, ok := priceFromNumber(value); ok && n != 0 {
			return n, true
		}
		if n, ok := priceFromString(value); ok && n != 0 {
			return n, true
		}
	}
	return 0, true
}

// parseLeadingNumber returns the first number in s, reading it the way a
// lenient float parser would ("1.2.3" is 1.2).
func parseLeadingNumber(s string) float64 {
	run := numericRun.FindString(s)
	if run == "" {
		return 0
	}
	value, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return 0
	}
	return value
}

// ExtractImage reads an image URL from a string, the first element of a
// sequence, or an object carrying url/src/image_url.
func ExtractImage(node any) string {
	for _, strategy := range imageStrategies {
		if url, ok := strategy(node); ok {
			return url
		}
	}
	return ""
}

func imageFromString(node any) (string, bool) {
	s, ok := node.(string)
	return s, ok
}

func imageFromSequence(node any) (string, bool) {
	items, ok := node.([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	return ExtractImage(items[0]), true
}

func imageFromObject(node any) (string, bool) {
	obj, ok := node.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"url", "src", "image_url"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", true
}

// ExtractIdentifier renders a string or numeric identifier as a string.
func ExtractIdentifier(node any) string {
	switch v := node.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	if n, ok := asNumber(node); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// ExtractInventory reads an inventory count, defaulting to 0.
func ExtractInventory(node any) int {
	if n, ok := asNumber(node); ok {
		return int(n)
	}
	if s, ok := node.(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// InStock applies the listing rule: available only when the entry is not
// flagged sold-out and its inventory is strictly positive.
func InStock(node map[string]any) bool {
	if truthy(node["is_sold_out"]) {
		return false
	}
	return ExtractInventory(node["inventory"]) > 0
}

// LegacyAvailability applies the older boolean/quantity check, where an
// entry with no stock information counts as available.
func LegacyAvailability(node map[string]any) bool {
	for _, key := range []string{"in_stock", "availability"} {
		if b, ok := node[key].(bool); ok && !b {
			return false
		}
	}
	for _, key := range []string{"in_stock", "availability"} {
		if b, ok := node[key].(bool); ok && b {
			return true
		}
	}
	if qty, present := node["stock_quantity"]; present {
		n, _ := asNumber(qty)
		return n > 0
	}
	return true
}

// DiscountPercentage computes a whole-number discount when the node carries
// both a list price (mrp, else price) and a lower offer price
// (discounted_price, else offer_price). Otherwise it returns 0.
func DiscountPercentage(node map[string]any) int {
	list, offer := ListAndOfferPrice(node)
	if list > 0 && offer > 0 && list > offer {
		return int(math.Round((list - offer) / list * 100))
	}
	return 0
}

// ListAndOfferPrice returns the separate list and offer prices of a node, or
// zeros when the payload does not carry them.
func ListAndOfferPrice(node map[string]any) (float64, float64) {
	list := ExtractPrice(firstPresent(node, "mrp", "price"))
	offer := ExtractPrice(firstPresent(node, "discounted_price", "offer_price"))
	return list, offer
}

func firstPresent(node map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := node[key]; ok && truthy(value) {
			return value
		}
	}
	return nil
}

func asNumber(node any) (float64, bool) {
	switch v := node.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func truthy(node any) bool {
	switch v := node.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case []any, map[string]any:
		return true
	}
	if n, ok := asNumber(node); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}
