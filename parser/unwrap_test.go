package parser

import (
	"encoding/json"
	"testing"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func decodeResponse(t *testing.T, doc string) models.RawResponse {
	t.Helper()
	var raw models.RawResponse
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return raw
}

func TestUnwrapSnippetsFiltersWidgets(t *testing.T) {
	raw := decodeResponse(t, `{
		"response": {"snippets": [
			{"widget_type": "banner_snippet", "data": {"id": "banner"}},
			{"widget_type": "product_card_snippet_type_2", "data": {"identity": {"id": "1"}}},
			{"widget_type": "horizontal_rail", "data": {"id": "rail"}},
			{"widget_type": "product_card_snippet_type_2"},
			"garbage",
			{"widget_type": "product_card_snippet_type_2", "data": {"identity": {"id": "2"}}}
		]}
	}`)

	entries := Unwrap(raw)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for i, want := range []string{"1", "2"} {
		if entries[i].Shape != ShapeSnippet {
			t.Fatalf("entry %d shape = %v", i, entries[i].Shape)
		}
		if got := ExtractIdentifier(lookup(entries[i].Node, "identity", "id")); got != want {
			t.Fatalf("entry %d id = %q, want %q", i, got, want)
		}
	}
}

func TestUnwrapLegacyWidgets(t *testing.T) {
	raw := decodeResponse(t, `{
		"widgets": [
			{"data": {"products": [{"id": "a"}, {"id": "b"}]}},
			{"data": {"title": "no products"}},
			{"type": "no data"},
			{"data": {"products": [{"id": "c"}, 42]}}
		]
	}`)

	entries := Unwrap(raw)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Shape != ShapeLegacyWidget || entries[i].Node["id"] != want {
			t.Fatalf("entry %d = %+v, want legacy %q", i, entries[i], want)
		}
	}
}

func TestUnwrapBothShapesKeepsDuplicates(t *testing.T) {
	raw := decodeResponse(t, `{
		"response": {"snippets": [
			{"widget_type": "product_card_snippet_type_2", "data": {"id": "same"}}
		]},
		"widgets": [{"data": {"products": [{"id": "same"}]}}]
	}`)

	entries := Unwrap(raw)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (one per shape)", len(entries))
	}
	if entries[0].Shape != ShapeSnippet || entries[1].Shape != ShapeLegacyWidget {
		t.Fatalf("shape order = %v, %v", entries[0].Shape, entries[1].Shape)
	}
	if entries[0].Shape.String() != "snippet" || entries[1].Shape.String() != "legacy_widget" {
		t.Fatalf("shape names = %s, %s", entries[0].Shape, entries[1].Shape)
	}
}

func TestUnwrapUnrecognisedShapes(t *testing.T) {
	docs := map[string]string{
		"empty object":        `{}`,
		"snippets not a list": `{"response": {"snippets": {"a": 1}}}`,
		"response not object": `{"response": "oops"}`,
		"widgets not a list":  `{"widgets": "oops"}`,
		"unrelated keys":      `{"status": "ok", "layout": []}`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if entries := Unwrap(decodeResponse(t, doc)); len(entries) != 0 {
				t.Fatalf("entries = %d, want 0", len(entries))
			}
		})
	}

	if entries := Unwrap(nil); entries != nil {
		t.Fatalf("nil response should yield nil")
	}
}

func TestHasMore(t *testing.T) {
	tests := []struct {
		doc  string
		want bool
	}{
		{doc: `{"has_more": true}`, want: true},
		{doc: `{"hasMore": true}`, want: true},
		{doc: `{"has_more": false}`, want: false},
		{doc: `{"has_more": 1}`, want: true},
		{doc: `{}`, want: false},
	}

	for _, tt := range tests {
		if got := HasMore(decodeResponse(t, tt.doc)); got != tt.want {
			t.Errorf("HasMore(%s) = %v, want %v", tt.doc, got, tt.want)
		}
	}
}
