package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		page     int
		size     int
		maxSize  int
		wantPage int
		wantSize int
	}{
		{name: "defaults", page: 0, size: 0, maxSize: 100, wantPage: 1, wantSize: 20},
		{name: "negative page", page: -3, size: 10, maxSize: 100, wantPage: 1, wantSize: 10},
		{name: "oversized capped to max", page: 2, size: 500, maxSize: 100, wantPage: 2, wantSize: 100},
		{name: "at limit", page: 2, size: 100, maxSize: 100, wantPage: 2, wantSize: 100},
		{name: "negative size", page: 1, size: -5, maxSize: 100, wantPage: 1, wantSize: 20},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page, size := Clamp(tt.page, tt.size, tt.maxSize)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Offset(1, 20))
	assert.Equal(t, 20, Offset(2, 20))
	assert.Equal(t, 90, Offset(10, 10))
}

func TestNewPage_NeverNilItems(t *testing.T) {
	t.Parallel()

	p := NewPage[string](nil, 0, 1, 20)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}
