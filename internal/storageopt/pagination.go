package storageopt

import (
	"errors"
	"math"
)

var (
	ErrInvalidPage     = errors.New("storageopt: page must be >= 1")
	ErrInvalidPageSize = errors.New("storageopt: page size must be >= 1")
	ErrPageOverflow    = errors.New("storageopt: page offset overflows int64")
)

// ValidatePagination 校验页码（从 1 开始）与页大小，返回跳过的条数。
func ValidatePagination(page, pageSize int64) (int64, error) {
	if page < 1 {
		return 0, ErrInvalidPage
	}
	if pageSize < 1 {
		return 0, ErrInvalidPageSize
	}
	if page-1 > math.MaxInt64/pageSize {
		return 0, ErrPageOverflow
	}
	return (page - 1) * pageSize, nil
}

// CalculateTotalPages 向上取整的总页数。
func CalculateTotalPages(total, pageSize int64) int64 {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ClampLimit 把调用方给出的条数上限归一到 [1, max]，n ≤ 0 取 def。
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
