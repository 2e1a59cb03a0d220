package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, falling back
// to defaultDir for empty or unknown input.
func ValidateSortOrder(orderDir, defaultDir string) string {
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	return defaultDir
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

// orderBy builds an ORDER BY clause from validated input. id is always the
// tie-breaker so pages are stable.
func orderBy(field, dir string, allowed map[string]bool, defaultField, defaultDir string) string {
	f := ValidateSortField(field, allowed, defaultField)
	d := ValidateSortOrder(dir, defaultDir)
	if f == "id" {
		return "id " + d
	}
	return f + " " + d + ", id " + d
}

// BatchSortFields contains allowed sort fields for batches
var BatchSortFields = map[string]bool{
	"id":          true,
	"received_at": true,
	"quantity":    true,
	"unit_cost":   true,
	"code":        true,
	"updated_at":  true,
}

// JournalSortFields contains allowed sort fields for inventory transactions
var JournalSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"quantity":   true,
	"type":       true,
}

// SessionSortFields contains allowed sort fields for costing sessions
var SessionSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"supply_code": true,
	"status":      true,
}
