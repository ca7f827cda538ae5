package util

// Page is the envelope every list endpoint returns.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func NewPage[T any](items []T, total int64, page, size int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: page, Size: size}
}

// Clamp normalizes raw page/size query values. Missing or non-positive size
// gets the default; anything above maxSize is capped there rather than reset,
// so asking for too much still returns the largest page allowed.
func Clamp(page, size, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

func Offset(page, size int) int {
	return (page - 1) * size
}
