// Package models defines data structures for the harvester.
package models

import "time"

// PageSize is the fixed listing page size accepted by the endpoint.
const PageSize = 15

// Availability is the two-valued stock flag exported for every product.
type Availability string

const (
	InStock    Availability = "In Stock"
	OutOfStock Availability = "Out of Stock"
)

// AvailabilityFrom maps a boolean stock check to its exported label.
func AvailabilityFrom(inStock bool) Availability {
	if inStock {
		return InStock
	}
	return OutOfStock
}

// ScrapeTask is one (location, category) unit of work read from the input file.
type ScrapeTask struct {
	Latitude     float64 `json:"latitude" yaml:"latitude"`
	Longitude    float64 `json:"longitude" yaml:"longitude"`
	L0Cat        int     `json:"l0_cat" yaml:"l0_cat"`
	L1Cat        int     `json:"l1_cat" yaml:"l1_cat"`
	LocationName string  `json:"location_name" yaml:"location_name"`
	CategoryName string  `json:"category_name" yaml:"category_name"`
}

// PageRequest describes a single listing call within a task's pagination run.
// SeenIDs is nil on the first page.
type PageRequest struct {
	Task    ScrapeTask
	Offset  int
	Limit   int
	SeenIDs []string
}

// PageIndex is the zero-based page number sent alongside the offset.
func (r PageRequest) PageIndex() int {
	if r.Limit <= 0 {
		return 0
	}
	return r.Offset / r.Limit
}

// RawResponse is the decoded, untyped listing response body.
type RawResponse map[string]any

// ProductRecord is the canonical, exported representation of one product.
type ProductRecord struct {
	ProductID          string       `csv:"product_id" json:"product_id"`
	ProductName        string       `csv:"product_name" json:"product_name"`
	Brand              string       `csv:"brand" json:"brand"`
	Price              float64      `csv:"price" json:"price"`
	DiscountedPrice    float64      `csv:"discounted_price" json:"discounted_price"`
	DiscountPercentage int          `csv:"discount_percentage" json:"discount_percentage"`
	Unit               string       `csv:"unit" json:"unit"`
	Category           string       `csv:"category" json:"category"`
	Subcategory        string       `csv:"subcategory" json:"subcategory"`
	Availability       Availability `csv:"availability" json:"availability"`
	Rating             float64      `csv:"rating" json:"rating"`
	ImageURL           string       `csv:"image_url" json:"image_url"`
	LocationName       string       `csv:"location_name" json:"location_name"`
	Latitude           float64      `csv:"latitude" json:"latitude"`
	Longitude          float64      `csv:"longitude" json:"longitude"`
	Inventory          int          `csv:"inventory" json:"inventory"`
	ScrapedAt          time.Time    `csv:"scraped_at" json:"scraped_at"`
}

// ScrapedAtLayout is the sortable ISO-8601 layout used for capture timestamps.
const ScrapedAtLayout = "2006-01-02T15:04:05.000Z07:00"
