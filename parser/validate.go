package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// ValidateRecord ensures a record carries enough to be exported.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.ProductID) == "" && strings.TrimSpace(r.ProductName) == "" {
		return fmt.Errorf("record missing both product id and name")
	}
	if r.Price < 0 {
		return fmt.Errorf("record %s has negative price", r.ProductID)
	}
	if r.Availability != models.InStock && r.Availability != models.OutOfStock {
		return fmt.Errorf("record %s has unknown availability %q", r.ProductID, r.Availability)
	}
	return nil
}

// IdentityKey is the product-identity key used for cross-shape dedup: the
// same product seen twice at one location collapses to one key.
func IdentityKey(r *models.ProductRecord) string {
	id := r.ProductID
	if id == "" {
		id = "name:" + strings.ToLower(r.ProductName)
	}
	return r.LocationName + "|" + r.Category + "|" + id
}
