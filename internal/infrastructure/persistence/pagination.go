package persistence

import "gorm.io/gorm"

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// paginate applies LIMIT/OFFSET for a 1-based page. Page 0 means the first page.
func paginate(q *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return q.Limit(pageSize).Offset((page - 1) * pageSize)
}
