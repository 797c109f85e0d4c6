package scraper

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// Fixed markers the listing endpoint expects alongside every page request.
const (
	lastSnippetType        = "product_card_snippet_type_2"
	lastWidgetType         = "product_container"
	totalEntitiesProcessed = 1
	totalPaginationItems   = 28
	shownProductCount      = 15
)

type queryParam struct {
	key   string
	value string
}

// listingQuery renders the query string in the order the web client sends it.
func listingQuery(req models.PageRequest) string {
	params := []queryParam{
		{"offset", strconv.Itoa(req.Offset)},
		{"limit", strconv.Itoa(req.Limit)},
		{"exclude_combos", "false"},
		{"l0_cat", strconv.Itoa(req.Task.L0Cat)},
		{"l1_cat", strconv.Itoa(req.Task.L1Cat)},
		{"last_snippet_type", lastSnippetType},
		{"last_widget_type", lastWidgetType},
		{"oos_visibility", "true"},
		{"page_index", strconv.Itoa(req.PageIndex())},
		{"total_entities_processed", strconv.Itoa(totalEntitiesProcessed)},
		{"total_pagination_items", strconv.Itoa(totalPaginationItems)},
	}

	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

func listingURL(cfg *config.Config, req models.PageRequest) string {
	return cfg.ListingURL() + "?" + listingQuery(req)
}

type postbackMeta struct {
	PrimaryResultsGroupIDs   []string `json:"primary_results_group_ids"`
	PrimaryResultsProductIDs []string `json:"primary_results_product_ids"`
}

type railState struct {
	TotalCount          int      `json:"total_count"`
	ProcessedCount      int      `json:"processed_count"`
	ProcessedProductIDs []string `json:"processed_product_ids"`
}

type processedRails struct {
	AspirationalCardRail railState `json:"aspirational_card_rail"`
	AttributeRail        railState `json:"attribute_rail"`
	BrandRail            railState `json:"brand_rail"`
	DCRail               railState `json:"dc_rail"`
	PriorityDCRail       railState `json:"priority_dc_rail"`
}

// listingBody is the JSON body of a listing request. ProcessedProductIDs
// marshals to null on the first page of a task.
type listingBody struct {
	AppliedFilters      any            `json:"applied_filters"`
	IsSRRailVisible     bool           `json:"is_sr_rail_visible"`
	IsSubsequentPage    bool           `json:"is_subsequent_page"`
	PostbackMeta        postbackMeta   `json:"postback_meta"`
	ProcessedProductIDs []string       `json:"processed_product_ids"`
	ProcessedRails      processedRails `json:"processed_rails"`
	ShownProductCount   int            `json:"shown_product_count"`
	Sort                string         `json:"sort"`
}

func newListingBody(seen []string) listingBody {
	postback := seen
	if postback == nil {
		postback = []string{}
	}
	rail := func(processed int) railState {
		return railState{ProcessedCount: processed, ProcessedProductIDs: []string{}}
	}
	return listingBody{
		PostbackMeta: postbackMeta{
			PrimaryResultsGroupIDs:   postback,
			PrimaryResultsProductIDs: postback,
		},
		ProcessedProductIDs: seen,
		ProcessedRails: processedRails{
			AspirationalCardRail: rail(5),
			AttributeRail:        rail(4),
			BrandRail:            rail(1),
			DCRail:               rail(1),
			PriorityDCRail:       rail(1),
		},
		ShownProductCount: shownProductCount,
	}
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// listingHeaders builds the browser-like header set, including the
// coordinate headers and the session cookie for the task's location.
func listingHeaders(cfg *config.Config, task models.ScrapeTask) http.Header {
	lat := formatCoordinate(task.Latitude)
	lon := formatCoordinate(task.Longitude)

	hdr := http.Header{}
	hdr.Set("accept", "*/*")
	hdr.Set("accept-language", "en-US,en;q=0.9")
	hdr.Set("access_token", "null")
	hdr.Set("app_client", "consumer_web")
	hdr.Set("app_version", "1010101010")
	hdr.Set("auth_key", cfg.AuthKey)
	hdr.Set("content-type", "application/json")
	hdr.Set("device_id", cfg.DeviceID)
	hdr.Set("lat", lat)
	hdr.Set("lon", lon)
	hdr.Set("origin", strings.TrimSuffix(cfg.BaseURL, "/"))
	hdr.Set("platform", "mobile_web")
	hdr.Set("priority", "u=1, i")
	hdr.Set("referer", cfg.Referer)
	hdr.Set("rn_bundle_version", "1009003012")
	hdr.Set("sec-ch-ua", `"Not)A;Brand";v="8", "Chromium";v="138", "Google Chrome";v="138"`)
	hdr.Set("sec-ch-ua-mobile", "?0")
	hdr.Set("sec-ch-ua-platform", `"Windows"`)
	hdr.Set("sec-fetch-dest", "empty")
	hdr.Set("sec-fetch-mode", "cors")
	hdr.Set("sec-fetch-site", "same-origin")
	hdr.Set("session_uuid", cfg.SessionUUID)
	hdr.Set("user-agent", cfg.UserAgent)
	hdr.Set("web_app_version", "1008010016")
	hdr.Set("x-age-consent-granted", "true")
	hdr.Set("cookie", listingCookie(cfg, lat, lon))
	return hdr
}

func listingCookie(cfg *config.Config, lat, lon string) string {
	cookie := "gr_1_deviceId=" + cfg.DeviceID +
		"; gr_1_lat=" + lat +
		"; gr_1_lon=" + lon +
		"; gr_1_locality=2071; gr_1_landmark=undefined"
	if extra := strings.TrimSpace(cfg.Cookies); extra != "" {
		cookie += "; " + strings.TrimPrefix(extra, "; ")
	}
	return cookie
}
