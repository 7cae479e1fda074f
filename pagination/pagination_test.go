package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name      string
		page      string
		limit     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", "", 1, 10},
		{"garbage", "abc", "x", 1, 10},
		{"zero page", "0", "20", 1, 20},
		{"negative page", "-3", "20", 1, 20},
		{"limit clamped high", "2", "500", 2, 100},
		{"zero limit uses default", "2", "0", 2, 10},
		{"negative limit", "1", "-5", 1, 1},
		{"in range", "4", "25", 4, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Normalize(tc.page, tc.limit)
			assert.Equal(t, tc.wantPage, req.Page)
			assert.Equal(t, tc.wantLimit, req.Limit)
		})
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, NewRequest(1, 10).Offset())
	assert.Equal(t, 40, NewRequest(3, 20).Offset())
}

func TestNewMetaTotalPages(t *testing.T) {
	for total := int64(0); total <= 250; total += 7 {
		for _, limit := range []int{1, 3, 10, 100} {
			meta := NewMeta(NewRequest(1, limit), total)
			want := int((total + int64(limit) - 1) / int64(limit))
			assert.Equal(t, want, meta.TotalPages, "total=%d limit=%d", total, limit)
		}
	}
}

func TestNewMetaEmpty(t *testing.T) {
	meta := NewMeta(NewRequest(1, 10), 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}

func TestNewMetaNavigation(t *testing.T) {
	meta := NewMeta(NewRequest(2, 10), 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	last := NewMeta(NewRequest(3, 10), 25)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)
}

func TestSortSpecNormalize(t *testing.T) {
	spec := SortSpec{
		Allowed: map[string]string{"createdAt": "created_at", "viewCount": "view_count"},
		Default: "createdAt",
	}

	s := spec.Normalize("viewCount", "ASC")
	assert.Equal(t, Sort{Field: "viewCount", Order: Asc}, s)
	assert.Equal(t, "view_count", spec.Column(s))

	s = spec.Normalize("password_hash; DROP TABLE users", "sideways")
	assert.Equal(t, Sort{Field: "createdAt", Order: Desc}, s)
	assert.Equal(t, "created_at", spec.Column(s))
}

func TestNewPageNeverNil(t *testing.T) {
	p := NewPage[int](nil, NewRequest(1, 10), 0)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}
