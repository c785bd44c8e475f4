package persistence

import (
	"strings"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// applyPagination orders and pages query. The order column is checked
// against allowed, falling back to defaultField.
func applyPagination(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}

// LoanSortFields contains allowed sort fields for loans
var LoanSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"loan_number":       true,
	"principal":         true,
	"disbursement_date": true,
	"status":            true,
	"dpd":               true,
	"bucket":            true,
	"bucket_since":      true,
}
